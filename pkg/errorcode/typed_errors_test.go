package errorcode

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSignerErrorClassification(t *testing.T) {
	unreachable := errors.Wrap(NewSignerUnreachable("getDepositParams", fmt.Errorf("connection refused")), "cannot request deposit params")
	assert.True(t, IsRetryable(unreachable))

	signerErr, ok := AsSignerError(unreachable)
	if assert.True(t, ok) {
		assert.Equal(t, SignerUnreachable, signerErr.Kind)
		assert.Contains(t, signerErr.Error(), "connection refused")
	}

	assert.False(t, IsRetryable(NewSignerRejected("registerDeposit", "unknown transfer")))
	assert.False(t, IsRetryable(NewSignerMalformedResponse("registerDeposit", "not JSON", nil)))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
}

func TestChainSubmissionErrorPhases(t *testing.T) {
	assert.False(t, IsOrphaned(NewPreBroadcastError(fmt.Errorf("nonce too low"))))

	orphaned := errors.Wrap(NewPostBroadcastError("0xabc", fmt.Errorf("timeout")), "deposit")
	assert.True(t, IsOrphaned(orphaned))
	assert.Contains(t, orphaned.Error(), "manual reconciliation")

	reverted := &ChainSubmissionError{Phase: PhasePostBroadcast, TxHash: "0xabc", Reverted: true, Err: fmt.Errorf("status 0")}
	assert.False(t, IsOrphaned(reverted))
	assert.Contains(t, reverted.Error(), "reverted")
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	err := errors.Wrapf(ErrorExpired, "transfer %v", "0x01")
	assert.Equal(t, ErrorExpired, errors.Cause(err))
}
