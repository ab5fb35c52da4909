package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExpirer struct {
	storage Storage
	calls   []string
}

func (e *recordingExpirer) ExpireDraft(ctx context.Context, userID string, _ time.Time) (bool, error) {
	e.calls = append(e.calls, userID)
	return true, e.storage.ClearState(ctx, userID)
}

func TestCleanerSweepExpiresOldDraftsOnly(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	now := time.Now()

	require.NoError(t, storage.SetState(ctx, "old", &UserState{UserID: "old", CurrentState: StateDraft, Draft: &Draft{Amount: 1000, CreatedAt: now.Add(-2 * time.Hour)}}))
	require.NoError(t, storage.SetState(ctx, "fresh", &UserState{UserID: "fresh", CurrentState: StateChannelSelected, Draft: &Draft{Amount: 1000, Channel: "wave", CreatedAt: now}}))
	require.NoError(t, storage.SetState(ctx, "waiting", &UserState{UserID: "waiting", CurrentState: StateAwaitingApproval, TopUpID: "TOP1"}))

	expirer := &recordingExpirer{storage: storage}
	cleaner := NewCleaner(storage, expirer, testLogger(), time.Hour, time.Minute)
	cleaner.now = func() time.Time { return now }

	expired, err := cleaner.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, []string{"old"}, expirer.calls)

	states, err := storage.GetAllStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 2)
}
