package errorcode

import (
	"fmt"

	"github.com/pkg/errors"
)

// SignerErrorKind classifies a failed exchange with the signer service.
type SignerErrorKind int

const (
	// SignerUnreachable means the request may not have reached the signer. Retryable with backoff.
	SignerUnreachable SignerErrorKind = iota + 1
	// SignerRejected means the signer understood the request and refused it.
	SignerRejected
	// SignerMalformedResponse means the signer answered with something that does not match the protocol.
	SignerMalformedResponse
)

func (k SignerErrorKind) String() string {
	switch k {
	case SignerUnreachable:
		return "unreachable"
	case SignerRejected:
		return "rejected"
	case SignerMalformedResponse:
		return "malformed response"
	}
	return "unknown"
}

// SignerError is returned for every failed signer exchange.
type SignerError struct {
	Kind      SignerErrorKind
	Operation string // The operation selector of the failed call
	Reason    string // The reason given by the signer (rejections) or by the transport
	Err       error
}

func (e *SignerError) Error() string {
	msg := fmt.Sprintf("signer %v on '%v'", e.Kind, e.Operation)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *SignerError) Unwrap() error {
	return e.Err
}

// NewSignerUnreachable creates an `Unreachable` signer error.
func NewSignerUnreachable(operation string, err error) *SignerError {
	return &SignerError{Kind: SignerUnreachable, Operation: operation, Err: err}
}

// NewSignerRejected creates a `Rejected` signer error carrying the signer's reason.
func NewSignerRejected(operation string, reason string) *SignerError {
	return &SignerError{Kind: SignerRejected, Operation: operation, Reason: reason}
}

// NewSignerMalformedResponse creates a `MalformedResponse` signer error.
func NewSignerMalformedResponse(operation string, reason string, err error) *SignerError {
	return &SignerError{Kind: SignerMalformedResponse, Operation: operation, Reason: reason, Err: err}
}

// AsSignerError extracts a `*SignerError` from anywhere in the error chain.
func AsSignerError(err error) (*SignerError, bool) {
	var signerErr *SignerError
	if errors.As(err, &signerErr) {
		return signerErr, true
	}

	return nil, false
}

// IsRetryable reports whether the error is a signer error the caller may retry.
func IsRetryable(err error) bool {
	signerErr, ok := AsSignerError(err)
	return ok && signerErr.Kind == SignerUnreachable
}

// ChainSubmissionPhase tells whether a chain submission failure happened before or after the transaction left the process.
type ChainSubmissionPhase int

const (
	// PhasePreBroadcast failures leave no external effect. Safe to retry or abort.
	PhasePreBroadcast ChainSubmissionPhase = iota + 1
	// PhasePostBroadcast failures leave the deposit in an unknown on-chain state. Needs manual reconciliation.
	PhasePostBroadcast
)

func (p ChainSubmissionPhase) String() string {
	switch p {
	case PhasePreBroadcast:
		return "pre-broadcast"
	case PhasePostBroadcast:
		return "post-broadcast"
	}
	return "unknown"
}

// ChainSubmissionError is returned when the chain submission collaborator fails.
type ChainSubmissionError struct {
	Phase    ChainSubmissionPhase
	TxHash   string // Set for post-broadcast failures
	Reverted bool   // The transaction was mined and failed. The outcome is known, nothing is orphaned.
	Err      error
}

func (e *ChainSubmissionError) Error() string {
	if e.Reverted {
		return fmt.Sprintf("chain submission failed %v: tx %v reverted: %v", e.Phase, e.TxHash, e.Err)
	}
	if e.Phase == PhasePostBroadcast {
		return fmt.Sprintf("chain submission failed %v (tx %v), orphaned deposit requires manual reconciliation: %v", e.Phase, e.TxHash, e.Err)
	}

	return fmt.Sprintf("chain submission failed %v: %v", e.Phase, e.Err)
}

func (e *ChainSubmissionError) Unwrap() error {
	return e.Err
}

// IsOrphaned reports whether the error signals a broadcast deposit whose outcome is unknown.
func IsOrphaned(err error) bool {
	var chainErr *ChainSubmissionError
	return errors.As(err, &chainErr) && chainErr.Phase == PhasePostBroadcast && !chainErr.Reverted
}

// NewPreBroadcastError wraps a failure that happened before the transaction left the process.
func NewPreBroadcastError(err error) *ChainSubmissionError {
	return &ChainSubmissionError{Phase: PhasePreBroadcast, Err: err}
}

// NewPostBroadcastError wraps a failure to observe the outcome of a broadcast transaction.
func NewPostBroadcastError(txHash string, err error) *ChainSubmissionError {
	return &ChainSubmissionError{Phase: PhasePostBroadcast, TxHash: txHash, Err: err}
}
