package resilience

import (
	"context"
	"time"
)

// RetryPolicy retries a call on retryable errors with fixed backoff.
// Non-retryable errors surface immediately.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration

	// sleep is injectable for tests; nil means a context-aware sleep.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy creates a policy with the given attempt limit and backoff.
func NewRetryPolicy(maxAttempts int, backoff time.Duration) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryPolicy{MaxAttempts: maxAttempts, Backoff: backoff}
}

// WithSleep injects the sleep function, for tests.
func (p *RetryPolicy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *RetryPolicy {
	p.sleep = sleep
	return p
}

// Do runs fn up to MaxAttempts times, sleeping Backoff between attempts.
// retryable decides whether an error is worth another attempt; the last
// error is returned when attempts are exhausted.
func (p *RetryPolicy) Do(ctx context.Context, retryable func(error) bool, fn func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil || !retryable(err) || attempt >= p.MaxAttempts {
			return err
		}
		if serr := p.doSleep(ctx, p.Backoff); serr != nil {
			return err
		}
	}
}

func (p *RetryPolicy) doSleep(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
