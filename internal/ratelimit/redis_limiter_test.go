package ratelimit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/mlbb-topup-bot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRedisLimiter_CommandRules(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		Enabled:   true,
		PerMinute: 30,
		Commands:  map[string]int{"mmb": 3, "topup": 2},
	})

	tests := []struct {
		command string
		allowed int
	}{
		{"/mmb", 3},
		{"/TOPUP", 2},
		{"/balance", 30},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			_, client := newTestRedis(t)
			limiter := NewRedisLimiter(client, testLogger())
			ctx := context.Background()

			limit, ok := rules.CommandLimit(tt.command)
			if !ok {
				limit = rules.PerUserLimit()
			}
			key := fmt.Sprintf("user:42:cmd:%s", tt.command)

			for i := 0; i < tt.allowed; i++ {
				res, err := limiter.Check(ctx, key, limit, Window)
				require.NoError(t, err)
				assert.True(t, res.Allowed, "attempt %d", i+1)
				assert.Equal(t, tt.allowed-i-1, res.Remaining)
			}

			res, err := limiter.Check(ctx, key, limit, Window)
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Zero(t, res.Remaining)
		})
	}
}

func TestRedisLimiter_SharedAcrossInstances(t *testing.T) {
	_, client := newTestRedis(t)
	first := NewRedisLimiter(client, testLogger())
	second := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	res, err := first.Check(ctx, "user:42", 2, Window)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = second.Check(ctx, "user:42", 2, Window)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = first.Check(ctx, "user:42", 2, Window)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	other, err := second.Check(ctx, "user:7", 2, Window)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestRedisLimiter_RejectedAttemptsKeepCounting(t *testing.T) {
	mr, client := newTestRedis(t)
	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := limiter.Check(ctx, "user:42:cmd:/topup", 2, Window)
		require.NoError(t, err)
	}

	members, err := mr.ZMembers(keyPrefix + "user:42:cmd:/topup")
	require.NoError(t, err)
	assert.Len(t, members, 5)
	assert.Equal(t, 2*Window, mr.TTL(keyPrefix+"user:42:cmd:/topup"))
}

func TestRedisLimiter_RetryAfterFollowsOldestRequest(t *testing.T) {
	_, client := newTestRedis(t)
	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()
	before := time.Now().Truncate(time.Millisecond)

	_, err := limiter.Check(ctx, "user:42:cmd:/mmb", 1, Window)
	require.NoError(t, err)

	res, err := limiter.Check(ctx, "user:42:cmd:/mmb", 1, Window)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	assert.False(t, res.ResetAt.Before(before.Add(Window)))
	assert.False(t, res.ResetAt.After(time.Now().Add(Window)))

	retry := res.RetryAfter(time.Now())
	assert.GreaterOrEqual(t, retry, 59)
	assert.LessOrEqual(t, retry, 61)
}

func TestRedisLimiter_NonPositiveLimitRejects(t *testing.T) {
	_, client := newTestRedis(t)
	limiter := NewRedisLimiter(client, testLogger())

	res, err := limiter.Check(context.Background(), "user:42", 0, Window)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 1, (&Result{}).RetryAfter(time.Now()))
}

func TestRedisLimiter_ErrorsWhenRedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	limiter := NewRedisLimiter(client, testLogger())
	mr.Close()

	_, err := limiter.Check(context.Background(), "user:42", 5, Window)
	assert.Error(t, err)
}
