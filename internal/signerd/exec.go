package signerd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gitee.com/czyczk/claimlink/internal/signerapi"
)

// Exit codes of `RunExec`.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// RunExec answers one request given on the command line, the way a subprocess signer is invoked. Two arguments are `<command> <payload>`, one argument is a payload carrying its own `command`. The response envelope is written to `stdout`, rejections included.
func RunExec(ctx context.Context, signer *Signer, args []string, stdout, stderr io.Writer) int {
	var req signerapi.Request
	var payload string

	switch len(args) {
	case 1:
		payload = args[0]
	case 2:
		payload = args[1]
	default:
		fmt.Fprintln(stderr, "expected '<command> <payload>' or '<payload>'")
		return ExitUsage
	}

	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		fmt.Fprintf(stderr, "payload is not a signer request: %v\n", err)
		return ExitUsage
	}
	if len(args) == 2 {
		req.Command = signerapi.Command(args[0])
	}

	resp := signer.Handle(ctx, &req)
	if err := json.NewEncoder(stdout).Encode(resp); err != nil {
		fmt.Fprintf(stderr, "cannot write response: %v\n", err)
		return ExitError
	}

	return ExitOK
}
