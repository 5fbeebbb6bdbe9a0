package catalog

import (
	"context"
	"errors"
	"time"
)

// errMalformed marks a response body that could not be decoded. Retrying the
// same request would not change the answer.
var errMalformed = errors.New("malformed catalog response")

// FixedRetryPolicy retries failed requests a fixed number of times with a
// constant pause between attempts.
type FixedRetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the Google Books budget: two attempts, one second apart.
func DefaultRetryPolicy() FixedRetryPolicy {
	return FixedRetryPolicy{MaxAttempts: 2, Delay: time.Second}
}

// ShouldRetry decides whether the error of the given 1-based attempt is retryable.
func (p FixedRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.MaxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !errors.Is(err, errMalformed)
}

// Backoff returns the wait before the next attempt.
func (p FixedRetryPolicy) Backoff(int) time.Duration {
	return p.Delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
