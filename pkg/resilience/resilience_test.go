package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0

	err := Retry(context.Background(), fastRetryConfig(3), nil, func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesUntilSuccess(t *testing.T) {
	calls := 0

	err := Retry(context.Background(), fastRetryConfig(3), nil, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	testErr := errors.New("still broken")

	err := Retry(context.Background(), fastRetryConfig(3), nil, func() error {
		calls++
		return testErr
	})

	assert.Equal(t, testErr, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")

	err := Retry(context.Background(), fastRetryConfig(5), func(err error) bool {
		return !errors.Is(err, fatal)
	}, func() error {
		calls++
		return fatal
	})

	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastRetryConfig(3), nil, func() error {
		calls++
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestRateLimiter_AllowsUpToRate(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)

	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	time.Sleep(15 * time.Millisecond)

	assert.True(t, rl.Allow())
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	assert.True(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
