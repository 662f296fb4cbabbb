package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  3,
		Jitter:       false,
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := NewBackoff(fastConfig()).Retry(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := NewBackoff(fastConfig()).Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	failure := errors.New("still broken")
	err := NewBackoff(fastConfig()).Retry(context.Background(), func() error {
		calls++
		return failure
	})
	assert.Equal(t, failure, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithPredicateStopsOnNonRetryable(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	err := NewBackoff(fastConfig()).RetryWithPredicate(context.Background(), func() error {
		calls++
		return fatal
	}, func(err error) bool { return false })
	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewBackoff(fastConfig()).Retry(ctx, func() error {
		return errors.New("never reached on cancelled context")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelayGrowsAndCaps(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
		Jitter:       false,
	})

	assert.Equal(t, 100*time.Millisecond, b.GetNextDelay(1))
	assert.Equal(t, 200*time.Millisecond, b.GetNextDelay(2))
	assert.Equal(t, 400*time.Millisecond, b.GetNextDelay(3))
	assert.Equal(t, time.Second, b.GetNextDelay(10))
}

func TestJitteredDelayStaysInBounds(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	})

	for i := 0; i < 50; i++ {
		delay := b.GetNextDelay(2)
		// 200ms base with up to 25% jitter either way.
		assert.GreaterOrEqual(t, delay, 150*time.Millisecond)
		assert.LessOrEqual(t, delay, 250*time.Millisecond)
	}
}
