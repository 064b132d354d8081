package inprocsignerapi

import (
	"context"
	"encoding/json"

	"gitee.com/czyczk/claimlink/internal/signerapi"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/pkg/errors"
)

// Transport hands requests to a handler in the same process. Requests and answers still go through JSON, so the handler sees exactly what a remote signer would.
type Transport struct {
	Handler signerapi.Handler
}

// NewTransport creates an in-process transport.
func NewTransport(handler signerapi.Handler) *Transport {
	return &Transport{Handler: handler}
}

func (t *Transport) Call(ctx context.Context, req *signerapi.Request) (interface{}, error) {
	op := string(req.Command)
	if err := ctx.Err(); err != nil {
		return nil, errorcode.NewSignerUnreachable(op, err)
	}

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "无法序列化签名请求")
	}
	var wireReq signerapi.Request
	if err := json.Unmarshal(reqBytes, &wireReq); err != nil {
		return nil, errors.Wrap(err, "无法反序列化签名请求")
	}

	resp := t.Handler.Handle(ctx, &wireReq)
	if resp == nil {
		return nil, errorcode.NewSignerMalformedResponse(op, "handler returned no response", nil)
	}

	respBytes, err := json.Marshal(resp)
	if err != nil {
		return nil, errorcode.NewSignerMalformedResponse(op, "response cannot be serialized", err)
	}

	_, result, err := signerapi.ParseResponseBody(req.Command, respBytes)
	return result, err
}

func (t *Transport) Close() error {
	return nil
}
