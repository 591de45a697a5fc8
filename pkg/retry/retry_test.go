package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fast(opts ...Option) *Retrier {
	base := []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}
	return New(append(base, opts...)...)
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	var delays []time.Duration
	r := fast(WithMaxAttempts(4), WithOnRetry(func(_ int, _ error, d time.Duration) {
		delays = append(delays, d)
	}))

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(3)).Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errTransient)
	})
	assert.ErrorIs(t, err, errTransient)
	assert.False(t, IsRetryable(err), "the wrapper is removed on the way out")
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(5)).Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errTransient)
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryIf(t *testing.T) {
	calls := 0
	r := fast(WithMaxAttempts(5), WithRetryIf(func(err error) bool { return !errors.Is(err, context.Canceled) }))
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fast().Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestCalculateDelay_CapsAtMax(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(300*time.Millisecond), WithJitter(0))
	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 300*time.Millisecond, r.calculateDelay(3))
	assert.Equal(t, 300*time.Millisecond, r.calculateDelay(8))
}

func TestStoreWriteRetrier(t *testing.T) {
	assert.Equal(t, 4, StoreWriteRetrier().MaxAttempts())
}
