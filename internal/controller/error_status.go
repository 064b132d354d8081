package controller

import (
	"net/http"

	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/pkg/errors"
)

// statusFromError maps a flow failure to the HTTP status answered to the client.
func statusFromError(err error) int {
	if signerErr, ok := errorcode.AsSignerError(err); ok {
		switch signerErr.Kind {
		case errorcode.SignerUnreachable:
			return http.StatusServiceUnavailable
		case errorcode.SignerRejected:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusBadGateway
		}
	}

	var chainErr *errorcode.ChainSubmissionError
	if errors.As(err, &chainErr) {
		if errorcode.IsOrphaned(err) {
			return http.StatusAccepted
		}
		return http.StatusBadGateway
	}

	switch errors.Cause(err) {
	case errorcode.ErrorInvalidDescriptor, errorcode.ErrorDecode:
		return http.StatusBadRequest
	case errorcode.ErrorExpired:
		return http.StatusGone
	case errorcode.ErrorNotFound:
		return http.StatusNotFound
	case errorcode.ErrorInvalidTransition:
		return http.StatusConflict
	case errorcode.ErrorNotImplemented:
		return http.StatusNotImplemented
	}

	return http.StatusInternalServerError
}
