package service

import (
	"context"
	"time"

	"gitee.com/czyczk/claimlink/internal/signerapi"
	"gitee.com/czyczk/claimlink/internal/utils/timingutils"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	log "github.com/sirupsen/logrus"
)

// RetryPolicy bounds the retries of unreachable signer calls. Rejections and malformed responses are never retried.
type RetryPolicy struct {
	MaxAttempts    int           // Total attempts including the first
	InitialBackoff time.Duration // Doubled after every failed attempt
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy tries 4 times over roughly 3.5s.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    4,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			return p.MaxBackoff
		}
	}

	return backoff
}

// callWithRetry sends the request, retrying while the signer is unreachable and attempts remain.
func callWithRetry(ctx context.Context, transport signerapi.Transport, policy RetryPolicy, req *signerapi.Request) (interface{}, error) {
	defer timingutils.GetDeferrableTimingLogger("Signer exchange '" + string(req.Command) + "'")()

	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := transport.Call(ctx, req)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !errorcode.IsRetryable(err) || attempt == maxAttempts {
			break
		}

		backoff := policy.backoff(attempt)
		log.Warnf("Signer unreachable on '%v' (attempt %v/%v), retrying in %v: %v", req.Command, attempt, maxAttempts, backoff, err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errorcode.NewSignerUnreachable(string(req.Command), ctx.Err())
		case <-timer.C:
		}
	}

	return nil, lastErr
}
