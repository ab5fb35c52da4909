package idempotency

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stores(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"redis":  NewRedisStore(client, testLogger()),
		"memory": NewMemoryStore(),
	}
}

func TestManager_RunsOnce(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, time.Hour, testLogger())
			calls := 0
			op := func(context.Context) error {
				calls++
				return nil
			}

			res, err := m.Execute(context.Background(), "k1", op)
			require.NoError(t, err)
			assert.False(t, res.Duplicate)

			res, err = m.Execute(context.Background(), "k1", op)
			require.NoError(t, err)
			assert.True(t, res.Duplicate)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestManager_FailureAllowsRetry(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, time.Hour, testLogger())

			_, err := m.Execute(context.Background(), "k2", func(context.Context) error { return assert.AnError })
			assert.ErrorIs(t, err, assert.AnError)

			status, err := store.Status(context.Background(), "k2")
			require.NoError(t, err)
			assert.Empty(t, status)

			res, err := m.Execute(context.Background(), "k2", func(context.Context) error { return nil })
			require.NoError(t, err)
			assert.False(t, res.Duplicate)
		})
	}
}

func TestManager_InProgress(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := store.Begin(context.Background(), "k3", time.Minute)
			require.NoError(t, err)
			require.True(t, ok)

			m := NewManager(store, time.Hour, testLogger())
			_, err = m.Execute(context.Background(), "k3", func(context.Context) error { return nil })
			assert.ErrorIs(t, err, ErrRequestInProgress)
		})
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Complete(context.Background(), "k", time.Minute))
	status, _ := store.Status(context.Background(), "k")
	assert.Equal(t, StatusCompleted, status)

	now = now.Add(2 * time.Minute)
	status, _ = store.Status(context.Background(), "k")
	assert.Empty(t, status)
	assert.Equal(t, 1, store.Cleanup())
}

func TestCleaner_RemovesKeysWithoutExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), keyPrefix+"stale", StatusCompleted, 0).Err())
	require.NoError(t, client.Set(context.Background(), keyPrefix+"fresh", StatusCompleted, time.Hour).Err())

	c := NewCleaner(client, nil, testLogger(), time.Minute)
	assert.Equal(t, 1, c.Cleanup(context.Background()))
	assert.False(t, mr.Exists(keyPrefix+"stale"))
	assert.True(t, mr.Exists(keyPrefix+"fresh"))
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, GenerateKey("cb", "1"), GenerateKey("cb", "1"))
	assert.NotEqual(t, GenerateKey("cb", "1"), GenerateKey("cb", "2"))
	assert.Len(t, GenerateKey("x"), 64)
}
