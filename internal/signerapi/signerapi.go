package signerapi

import (
	"bytes"
	"context"
	"encoding/json"

	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/google/uuid"
)

// Command is the operation selector of a signer call.
type Command string

const (
	CommandGetDepositParams          Command = "getDepositParams"
	CommandRegisterDeposit           Command = "registerDeposit"
	CommandGetRecoveredLinkTypedData Command = "getRecoveredLinkTypedData"
)

// IsKnown reports whether the signer protocol defines the command.
func (c Command) IsKnown() bool {
	switch c {
	case CommandGetDepositParams, CommandRegisterDeposit, CommandGetRecoveredLinkTypedData:
		return true
	}
	return false
}

// Request is the payload of one signer call. It never carries private key material.
type Request struct {
	RequestID  string                    `json:"requestId,omitempty"`
	Command    Command                   `json:"command"`
	TransferID string                    `json:"transferId"`
	ClaimLink  claimlink.ClaimLinkParams `json:"claimLink"`
	LinkKeyID  string                    `json:"linkKeyId,omitempty"`
	TxHash     string                    `json:"txHash,omitempty"`
}

// NewRequest creates a request with a fresh correlation ID.
func NewRequest(command Command, transferID string, claimLink claimlink.ClaimLinkParams) *Request {
	return &Request{
		RequestID:  uuid.NewString(),
		Command:    command,
		TransferID: transferID,
		ClaimLink:  claimLink,
	}
}

// Response is the envelope a signer answers with. Signers may also answer with the bare result.
type Response struct {
	RequestID string      `json:"requestId,omitempty"`
	Success   bool        `json:"success"`
	Error     string      `json:"error,omitempty"`
	Result    interface{} `json:"result,omitempty"`
}

// NewSuccessResponse wraps a result in a success envelope.
func NewSuccessResponse(requestID string, result interface{}) *Response {
	return &Response{RequestID: requestID, Success: true, Result: result}
}

// NewErrorResponse wraps a rejection reason in an error envelope.
func NewErrorResponse(requestID string, reason string) *Response {
	return &Response{RequestID: requestID, Success: false, Error: reason}
}

// Transport carries one request to the signer and returns the loosely typed result. Failures are returned as `*errorcode.SignerError`. Implementations must be safe for concurrent use.
type Transport interface {
	Call(ctx context.Context, req *Request) (interface{}, error)
	Close() error
}

// ParseResponseBody interprets a signer's answer. A body with a `success` member is an envelope, anything else is taken as the bare result. Numbers are kept as `json.Number` so large amounts survive.
func ParseResponseBody(command Command, body []byte) (requestID string, result interface{}, err error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var raw interface{}
	if err = decoder.Decode(&raw); err != nil {
		return "", nil, errorcode.NewSignerMalformedResponse(string(command), "response is not JSON", err)
	}

	envelope, ok := raw.(map[string]interface{})
	if !ok {
		return "", raw, nil
	}
	successValue, isEnvelope := envelope["success"]
	if !isEnvelope {
		return "", raw, nil
	}

	success, ok := successValue.(bool)
	if !ok {
		return "", nil, errorcode.NewSignerMalformedResponse(string(command), "'success' is not a boolean", nil)
	}
	if id, ok := envelope["requestId"].(string); ok {
		requestID = id
	}

	if !success {
		reason, _ := envelope["error"].(string)
		if reason == "" {
			reason = "no reason given"
		}
		return requestID, nil, errorcode.NewSignerRejected(string(command), reason)
	}

	result, ok = envelope["result"]
	if !ok || result == nil {
		return requestID, nil, errorcode.NewSignerMalformedResponse(string(command), "success response carries no result", nil)
	}

	return requestID, result, nil
}

// Handler answers signer requests. The reference signer implements it and every transport's server side delegates to it.
type Handler interface {
	Handle(ctx context.Context, req *Request) *Response
}
