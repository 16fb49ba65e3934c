package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/config"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1,
		Constant:        true,
	}
}

func TestRetry_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_FatalStopsImmediately(t *testing.T) {
	cause := errors.New("unauthorized")
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return NewFatalError(cause)
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	cause := errors.New("timeout")
	calls := 0
	err := Retry(context.Background(), fastPolicy(2), func() error {
		calls++
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 2, calls)
}

func TestRetryWithCallback_ReportsAttempts(t *testing.T) {
	var attempts []int
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		return errors.New("busy")
	}, func(attempt int, err error, next time.Duration) {
		attempts = append(attempts, attempt)
		assert.Equal(t, time.Millisecond, next)
	})

	assert.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, Policy{MaxAttempts: 5, InitialInterval: time.Second, Constant: true}, func() error {
		calls++
		return errors.New("down")
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(config.RetryConfig{MaxAttempts: 7, InitialInterval: 2 * time.Second})
	assert.Equal(t, 7, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.InitialInterval)
	assert.Equal(t, 30*time.Second, p.MaxInterval)
	assert.Equal(t, 2.0, p.Multiplier)
	assert.Zero(t, p.MaxElapsedTime)
}

func TestCalculateBackoffDuration(t *testing.T) {
	assert.Equal(t, time.Second, CalculateBackoffDuration(1, time.Second, 2, 30*time.Second))
	assert.Equal(t, 4*time.Second, CalculateBackoffDuration(3, time.Second, 2, 30*time.Second))
	assert.Equal(t, 30*time.Second, CalculateBackoffDuration(10, time.Second, 2, 30*time.Second))
}

func TestRetry_UnlimitedOutlastsMaxAttempts(t *testing.T) {
	policy := Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, Constant: true, Unlimited: true}

	calls := 0
	err := RetryWithCallback(context.Background(), policy, func() error {
		calls++
		if calls <= 8 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 9, calls)
}

func TestUnlimitedFromConfig(t *testing.T) {
	assert.True(t, UnlimitedFromConfig(config.RetryConfig{}).Unlimited)

	bounded := UnlimitedFromConfig(config.RetryConfig{MaxAttempts: 4})
	assert.False(t, bounded.Unlimited)
	assert.Equal(t, 4, bounded.MaxAttempts)
}
