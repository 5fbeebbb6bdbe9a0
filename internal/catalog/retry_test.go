package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedRetryPolicy(t *testing.T) {
	t.Parallel()

	p := FixedRetryPolicy{MaxAttempts: 2, Delay: 50 * time.Millisecond}
	boom := errors.New("boom")

	assert.False(t, p.ShouldRetry(nil, 1))
	assert.True(t, p.ShouldRetry(boom, 1))
	assert.False(t, p.ShouldRetry(boom, 2), "budget exhausted")
	assert.False(t, p.ShouldRetry(fmt.Errorf("wrapped: %w", context.Canceled), 1))
	assert.False(t, p.ShouldRetry(fmt.Errorf("%w: eof", errMalformed), 1))
	assert.True(t, p.ShouldRetry(&StatusError{Code: 503}, 1))
	assert.Equal(t, 50*time.Millisecond, p.Backoff(1))
}

func TestSleepCtxStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := sleepCtx(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
