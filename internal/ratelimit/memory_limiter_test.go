package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/mlbb-topup-bot/pkg/config"
)

func newClockedLimiter(now *time.Time) *MemoryLimiter {
	l := NewMemoryLimiter(testLogger())
	l.now = func() time.Time { return *now }
	return l
}

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := newClockedLimiter(&now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "user:1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		now = now.Add(10 * time.Second)
	}

	result, err := limiter.Check(ctx, "user:1", 2, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 1, 0, 0, time.UTC), result.ResetAt)
	assert.Equal(t, 41, result.RetryAfter(now))

	now = now.Add(41 * time.Second)
	result, err = limiter.Check(ctx, "user:1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	now := time.Now()
	limiter := newClockedLimiter(&now)

	_, err := limiter.Check(context.Background(), "user:1", 1, time.Minute)
	require.NoError(t, err)

	result, err := limiter.Check(context.Background(), "user:2", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	now := time.Now()
	limiter := newClockedLimiter(&now)

	_, err := limiter.Check(context.Background(), "user:1", 5, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 0, limiter.Cleanup(time.Hour))
	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, limiter.Cleanup(time.Hour))
}

type failingLimiter struct{}

func (failingLimiter) Check(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, assert.AnError
}

func TestAdaptiveLimiter_FallsBackWithHalfLimit(t *testing.T) {
	now := time.Now()
	adaptive := NewAdaptiveLimiter(failingLimiter{}, newClockedLimiter(&now), testLogger())

	for i := 0; i < 2; i++ {
		result, err := adaptive.Check(context.Background(), "user:1", 4, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	_, err := adaptive.Check(context.Background(), "user:1", 4, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestRules(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		PerMinute: 30,
		Commands:  map[string]int{"mmb": 10},
		Whitelist: []int64{42},
	})

	assert.True(t, rules.IsWhitelisted(42))
	assert.False(t, rules.IsWhitelisted(7))
	assert.Equal(t, 30, rules.PerUserLimit())

	tests := []struct {
		command string
		limit   int
		ok      bool
	}{
		{"/mmb", 10, true},
		{"/MMB", 10, true},
		{"mmb", 10, true},
		{"/topup", 0, false},
		{"text", 0, false},
	}

	for _, tt := range tests {
		limit, ok := rules.CommandLimit(tt.command)
		assert.Equal(t, tt.ok, ok, tt.command)
		assert.Equal(t, tt.limit, limit, tt.command)
	}
}
