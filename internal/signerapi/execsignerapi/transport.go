package execsignerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"gitee.com/czyczk/claimlink/internal/signerapi"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SelectorMode decides how the operation selector reaches the signer process.
type SelectorMode int

const (
	// SelectorPositional passes `<command> <payload>` as the last two arguments. The payload has no `command` member.
	SelectorPositional SelectorMode = iota
	// SelectorField passes the payload as the last argument with the selector in its `command` member.
	SelectorField
)

func (m SelectorMode) String() string {
	switch m {
	case SelectorPositional:
		return "positional"
	case SelectorField:
		return "field"
	default:
		return fmt.Sprintf("%d", int(m))
	}
}

// NewSelectorModeFromString 从 enum 名称获得 SelectorMode enum。
func NewSelectorModeFromString(enumString string) (SelectorMode, error) {
	switch enumString {
	case "positional", "":
		return SelectorPositional, nil
	case "field":
		return SelectorField, nil
	default:
		return 0, fmt.Errorf("unknown selector mode '%v'", enumString)
	}
}

// positionalPayload is the request without the selector.
type positionalPayload struct {
	RequestID  string      `json:"requestId,omitempty"`
	TransferID string      `json:"transferId"`
	ClaimLink  interface{} `json:"claimLink"`
	LinkKeyID  string      `json:"linkKeyId,omitempty"`
	TxHash     string      `json:"txHash,omitempty"`
}

// Transport runs the signer as a subprocess, once per call. Concurrent calls run separate processes.
type Transport struct {
	Path string
	Args []string // Leading arguments placed before the selector and payload
	Env  []string // Appended to the inherited environment
	Mode SelectorMode
}

// NewTransport creates a subprocess transport.
func NewTransport(path string, args []string, env []string, mode SelectorMode) *Transport {
	return &Transport{
		Path: path,
		Args: args,
		Env:  env,
		Mode: mode,
	}
}

func (t *Transport) buildArgs(req *signerapi.Request) ([]string, error) {
	args := append([]string{}, t.Args...)

	switch t.Mode {
	case SelectorPositional:
		payloadBytes, err := json.Marshal(&positionalPayload{
			RequestID:  req.RequestID,
			TransferID: req.TransferID,
			ClaimLink:  req.ClaimLink,
			LinkKeyID:  req.LinkKeyID,
			TxHash:     req.TxHash,
		})
		if err != nil {
			return nil, errors.Wrap(err, "无法序列化签名请求")
		}
		return append(args, string(req.Command), string(payloadBytes)), nil
	case SelectorField:
		payloadBytes, err := json.Marshal(req)
		if err != nil {
			return nil, errors.Wrap(err, "无法序列化签名请求")
		}
		return append(args, string(payloadBytes)), nil
	default:
		return nil, fmt.Errorf("unknown selector mode %v", t.Mode)
	}
}

// Call starts the process and parses its standard output. A process that cannot be started is unreachable, a non-zero exit is a rejection carrying the standard error.
func (t *Transport) Call(ctx context.Context, req *signerapi.Request) (interface{}, error) {
	op := string(req.Command)

	args, err := t.buildArgs(req)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, t.Path, args...)
	if len(t.Env) > 0 {
		cmd.Env = append(cmd.Environ(), t.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, errorcode.NewSignerUnreachable(op, errors.Wrapf(err, "cannot start signer process '%v'", t.Path))
	}

	err = cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errorcode.NewSignerUnreachable(op, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			reason := strings.TrimSpace(stderr.String())
			if reason == "" {
				reason = exitErr.Error()
			}
			return nil, errorcode.NewSignerRejected(op, reason)
		}
		return nil, errorcode.NewSignerUnreachable(op, err)
	}

	log.Debugf("Signer process answered '%v' with %v bytes", op, stdout.Len())

	_, result, err := signerapi.ParseResponseBody(req.Command, bytes.TrimSpace(stdout.Bytes()))
	return result, err
}

// Close is a no-op. Processes do not outlive their call.
func (t *Transport) Close() error {
	return nil
}
