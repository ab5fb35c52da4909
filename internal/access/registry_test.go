package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/lock"
	"github.com/Proton-105/mlbb-topup-bot/internal/repository"
	"github.com/Proton-105/mlbb-topup-bot/internal/state"
)

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Current(ctx context.Context, userID string) (*state.UserState, error) {
	args := m.Called(ctx, userID)
	st, _ := args.Get(0).(*state.UserState)
	return st, args.Error(1)
}

func (m *mockSessions) Reset(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func newRegistry(t *testing.T) (*Registry, *mockSessions) {
	t.Helper()

	sessions := &mockSessions{}
	store := repository.NewSettingsStore(repository.NewInMemory(), nil)
	return NewRegistry("1", store, sessions, lock.NewMemoryLocker(), nil), sessions
}

func restricted(userID string) *state.UserState {
	return &state.UserState{UserID: userID, CurrentState: state.StateAwaitingApproval, TopUpID: "T1"}
}

func TestOwnerIsImplicitAdmin(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	ok, err := reg.IsAdmin(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.IsAuthorized(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.IsAuthorized(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorizeAndRevoke(t *testing.T) {
	ctx := context.Background()
	reg, sessions := newRegistry(t)
	sessions.On("Current", mock.Anything, "42").Return(restricted("42"), nil).Times(3)
	sessions.On("Reset", mock.Anything, "42").Return(nil).Times(3)

	require.NoError(t, reg.Authorize(ctx, "1", "42"))
	require.NoError(t, reg.Authorize(ctx, "1", "42"))

	ok, err := reg.IsAuthorized(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, reg.Revoke(ctx, "1", "42"))
	ok, err = reg.IsAuthorized(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)

	err = reg.Revoke(ctx, "1", "42")
	assert.True(t, errors.Is(err, &apperrors.AppError{Kind: apperrors.KindNotFound, Entity: "authorized user"}))

	sessions.AssertExpectations(t)
}

func TestAuthorizeRequiresAdmin(t *testing.T) {
	reg, sessions := newRegistry(t)

	err := reg.Authorize(context.Background(), "42", "43")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	sessions.AssertNotCalled(t, "Reset", mock.Anything, mock.Anything)
}

func TestAdminManagementIsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	require.NoError(t, reg.AddAdmin(ctx, "1", "7"))

	ok, err := reg.IsAdmin(ctx, "7")
	require.NoError(t, err)
	assert.True(t, ok)

	err = reg.AddAdmin(ctx, "7", "8")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	err = reg.RemoveAdmin(ctx, "1", "1")
	assert.True(t, errors.Is(err, &apperrors.AppError{Kind: apperrors.KindValidation, Field: "admin"}))

	admins, err := reg.Admins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "7"}, admins)

	require.NoError(t, reg.RemoveAdmin(ctx, "1", "7"))
	admins, err = reg.Admins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, admins)

	err = reg.RemoveAdmin(ctx, "1", "7")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestAuthorizeKeepsUnrestrictedSession(t *testing.T) {
	ctx := context.Background()
	reg, sessions := newRegistry(t)

	draft := &state.UserState{UserID: "42", CurrentState: state.StateChannelSelected, Draft: &state.Draft{Amount: 5000, Channel: "kpay"}}
	sessions.On("Current", mock.Anything, "42").Return(draft, nil).Twice()

	require.NoError(t, reg.Authorize(ctx, "1", "42"))
	require.NoError(t, reg.Authorize(ctx, "1", "42"))

	sessions.AssertExpectations(t)
	sessions.AssertNotCalled(t, "Reset", mock.Anything, mock.Anything)
}

func TestClearRestrictionWaitsForAccountLock(t *testing.T) {
	ctx := context.Background()
	sessions := &mockSessions{}
	locker := lock.NewMemoryLocker()
	reg := NewRegistry("1", repository.NewSettingsStore(repository.NewInMemory(), nil), sessions, locker, nil)

	sessions.On("Current", mock.Anything, "42").Return(restricted("42"), nil).Once()
	sessions.On("Reset", mock.Anything, "42").Return(nil).Once()

	unlock, err := locker.Lock(ctx, lock.AccountKey("42"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- reg.Authorize(ctx, "1", "42") }()

	select {
	case <-done:
		t.Fatal("authorize finished while the account was locked")
	case <-time.After(50 * time.Millisecond):
	}
	sessions.AssertNotCalled(t, "Reset", mock.Anything, mock.Anything)

	unlock()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("authorize did not finish after the lock was released")
	}
	sessions.AssertExpectations(t)
}
