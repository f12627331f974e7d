package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("redis", BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	fail := func() error { return errFlaky }

	assert.ErrorIs(t, b.Do(fail), errFlaky)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Do(fail), errFlaky)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)
}

func TestBreakerRecoversAfterCooldown(t *testing.T) {
	now := time.Now()
	b := NewBreaker("redis", BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	b.now = func() time.Time { return now }

	require.Error(t, b.Do(func() error { return errFlaky }))
	require.Equal(t, StateOpen, b.State())

	now = now.Add(2 * time.Second)
	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker("redis", BreakerConfig{FailureThreshold: 3, Cooldown: time.Second})
	b.now = func() time.Time { return now }

	for range 3 {
		_ = b.Do(func() error { return errFlaky })
	}
	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, b.Do(func() error { return errFlaky }), errFlaky)
	assert.Equal(t, StateOpen, b.State(), "a single failed probe reopens")
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrBreakerOpen)
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker("redis", BreakerConfig{FailureThreshold: 2})
	_ = b.Do(func() error { return errFlaky })
	_ = b.Do(func() error { return nil })
	_ = b.Do(func() error { return errFlaky })
	assert.Equal(t, StateClosed, b.State())
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), "slow", 10*time.Millisecond, func(context.Context) error {
		time.Sleep(time.Second)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "slow: timed out")

	err = WithTimeout(context.Background(), "fast", time.Second, func(context.Context) error {
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = WithTimeout(ctx, "cancelled", time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	assert.True(t, errors.Is(err, context.Canceled))
}
