// Package retry provides a reusable retry policy for outbound calls:
// bounded attempts, exponential backoff with full jitter, and a per-attempt
// timeout. Call sites share a policy value instead of hand-rolling loops.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy describes how a call site retries.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

// DefaultPolicy matches the orchestrator's contract: up to 3 attempts, each
// bounded at 30 seconds, backing off from 1s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		MaxDelay:       10 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, or ctx is done.
// Each attempt gets its own timeout-bounded child context. The delay before
// attempt n is BaseDelay*2^(n-1) capped at MaxDelay, with full jitter.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(p.delay(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		lastErr = fn(attemptCtx)
		cancel()

		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func (p Policy) delay(n int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	// Full jitter: uniform in (0, d].
	return time.Duration(rand.Int63n(int64(d))) + 1
}
