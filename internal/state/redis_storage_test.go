package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStorage_SetAndGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	storage := NewRedisStorage(client, testLogger(), time.Minute)

	ctx := context.Background()
	userState := &UserState{
		UserID:       "123",
		CurrentState: StateChannelSelected,
		Draft:        &Draft{Amount: 50000, Channel: "kpay", CreatedAt: time.Now().UTC()},
	}

	require.NoError(t, storage.SetState(ctx, userState.UserID, userState))

	result, err := storage.GetState(ctx, userState.UserID)
	require.NoError(t, err)
	assert.Equal(t, userState.CurrentState, result.CurrentState)
	require.NotNil(t, result.Draft)
	assert.Equal(t, int64(50000), result.Draft.Amount)
	assert.Equal(t, "kpay", result.Draft.Channel)
}

func TestRedisStorage_DraftsExpireButRestrictionDoesNot(t *testing.T) {
	client, mr := setupTestRedis(t)
	storage := NewRedisStorage(client, testLogger(), time.Minute)
	ctx := context.Background()

	require.NoError(t, storage.SetState(ctx, "1", &UserState{CurrentState: StateDraft, Draft: &Draft{Amount: 1000}}))
	require.NoError(t, storage.SetState(ctx, "2", &UserState{CurrentState: StateAwaitingApproval, TopUpID: "TOP1"}))

	assert.Equal(t, 2*time.Minute, mr.TTL(redisUserStateKey("1")))
	assert.Zero(t, mr.TTL(redisUserStateKey("2")))

	mr.FastForward(3 * time.Minute)

	_, err := storage.GetState(ctx, "1")
	assert.ErrorIs(t, err, ErrStateNotFound)

	st, err := storage.GetState(ctx, "2")
	require.NoError(t, err)
	assert.True(t, st.Restricted())
}

func TestRedisStorage_ClearAndList(t *testing.T) {
	client, _ := setupTestRedis(t)
	storage := NewRedisStorage(client, testLogger(), 0)
	ctx := context.Background()

	for _, id := range []string{"10", "11", "12"} {
		require.NoError(t, storage.SetState(ctx, id, &UserState{UserID: id, CurrentState: StateDraft, Draft: &Draft{Amount: 1000}}))
	}
	require.NoError(t, storage.ClearState(ctx, "11"))

	states, err := storage.GetAllStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 2)

	_, err = storage.GetState(ctx, "11")
	assert.ErrorIs(t, err, ErrStateNotFound)
}
