package httpsignerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"gitee.com/czyczk/claimlink/internal/signerapi"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

// Transport posts each request as JSON to the signer's endpoint.
type Transport struct {
	Endpoint string
	Client   *http.Client
	Headers  map[string]string // e.g. an API key header
}

// NewTransport creates an HTTP transport. A nil client gets a default one with a 30s timeout.
func NewTransport(endpoint string, client *http.Client, headers map[string]string) *Transport {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &Transport{
		Endpoint: endpoint,
		Client:   client,
		Headers:  headers,
	}
}

// Call sends the request. 2xx answers are parsed, 4xx answers are rejections and 5xx answers or connection failures are treated as unreachable.
func (t *Transport) Call(ctx context.Context, req *signerapi.Request) (interface{}, error) {
	op := string(req.Command)

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "无法序列化签名请求")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, errors.Wrap(err, "无法创建签名请求")
	}
	httpReq.Header.Add("Content-Type", "application/json")
	httpReq.Header.Add("Content-Length", strconv.Itoa(len(reqBytes)))
	for key, value := range t.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return nil, errorcode.NewSignerUnreachable(op, err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorcode.NewSignerUnreachable(op, errors.Wrap(err, "cannot read response body"))
	}

	log.Debugf("Signer answered '%v' for request %v with HTTP %v", op, req.RequestID, resp.StatusCode)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		requestID, result, err := signerapi.ParseResponseBody(req.Command, respBodyBytes)
		if err != nil {
			return nil, err
		}
		if requestID != "" && requestID != req.RequestID {
			return nil, errorcode.NewSignerMalformedResponse(op, fmt.Sprintf("response is for request %v", requestID), nil)
		}
		return result, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, errorcode.NewSignerRejected(op, rejectionReason(req.Command, resp.StatusCode, respBodyBytes))
	case resp.StatusCode >= 500:
		return nil, errorcode.NewSignerUnreachable(op, fmt.Errorf("HTTP %v: %v", resp.StatusCode, string(respBodyBytes)))
	default:
		return nil, errorcode.NewSignerMalformedResponse(op, fmt.Sprintf("unexpected HTTP status %v", resp.StatusCode), nil)
	}
}

// rejectionReason prefers the envelope's error message and falls back to the raw body.
func rejectionReason(command signerapi.Command, statusCode int, body []byte) string {
	if _, _, err := signerapi.ParseResponseBody(command, body); err != nil {
		if signerErr, ok := errorcode.AsSignerError(err); ok && signerErr.Kind == errorcode.SignerRejected {
			return signerErr.Reason
		}
	}

	if len(body) == 0 {
		return fmt.Sprintf("HTTP %v", statusCode)
	}
	return fmt.Sprintf("HTTP %v: %v", statusCode, string(body))
}

// Close releases idle connections.
func (t *Transport) Close() error {
	t.Client.CloseIdleConnections()
	return nil
}
