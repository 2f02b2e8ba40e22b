package http

import (
	"context"
	"time"
)

// RetryPolicy re-runs an operation while its failures are classified as
// transient, sleeping an exponentially growing delay between attempts.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	// MaxDelay caps a single backoff sleep. Zero means uncapped.
	MaxDelay time.Duration
	// Retryable decides whether an error is worth another attempt.
	// A nil classifier retries nothing.
	Retryable func(error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(retry int, delay time.Duration, err error)
}

// Backoff returns the sleep before the given retry (1-based):
// BaseDelay, 2*BaseDelay, 4*BaseDelay, ... capped at MaxDelay.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	delay := p.BaseDelay
	for i := 1; i < retry; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do runs op until it succeeds, fails with a non-retryable error, exhausts
// the retries, or ctx is done. It returns the number of attempts made and
// the last error.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	attempts := 0
	for {
		attempts++
		err := op(ctx)
		if err == nil {
			return attempts, nil
		}

		retry := attempts
		if retry > p.MaxRetries || ctx.Err() != nil || p.Retryable == nil || !p.Retryable(err) {
			return attempts, err
		}

		delay := p.Backoff(retry)
		if p.OnRetry != nil {
			p.OnRetry(retry, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, err
		case <-timer.C:
		}
	}
}
