package provider

import (
	"context"
	"time"
)

// RetryPolicy wraps provider calls with a bounded, fixed-backoff retry. The
// client itself never retries; call sites that want stronger delivery
// guarantees apply a policy explicitly.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// NoRetry is a single-attempt policy
var NoRetry = RetryPolicy{MaxAttempts: 1}

// Do invokes fn up to MaxAttempts times, sleeping Backoff between attempts.
// It respects context cancellation between attempts and returns the last
// error.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 && p.Backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Backoff):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
