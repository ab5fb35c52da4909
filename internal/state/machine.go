package state

import (
	"context"
	"errors"
	"log/slog"
)

var (
	// ErrInvalidTransition indicates that a requested transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStateNotFound indicates that a user state record does not exist.
	ErrStateNotFound = errors.New("user state not found")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// StateMachine describes the operations supported by the session controller.
// It does not serialize callers; hold the per-account lock around
// read-modify-write sequences.
type StateMachine interface {
	// Current returns the user's state, idle when nothing is stored.
	Current(ctx context.Context, userID string) (*UserState, error)
	// TransitionTo moves the user to next after applying update to a copy of
	// the current state.
	TransitionTo(ctx context.Context, userID string, next State, update func(*UserState)) (*UserState, error)
	// Reset forces the user back to idle.
	Reset(ctx context.Context, userID string) error
	GetAllStates(ctx context.Context) ([]*UserState, error)
}

type machine struct {
	storage Storage
	log     *slog.Logger
}

// NewStateMachine creates a session controller on top of storage.
func NewStateMachine(storage Storage, log *slog.Logger) StateMachine {
	if log == nil {
		log = slog.Default()
	}

	return &machine{
		storage: storage,
		log:     log,
	}
}

func (m *machine) Current(ctx context.Context, userID string) (*UserState, error) {
	st, err := m.storage.GetState(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return idleState(userID), nil
		}
		return nil, err
	}

	if st == nil {
		return idleState(userID), nil
	}

	st.UserID = userID
	return st, nil
}

func (m *machine) GetAllStates(ctx context.Context) ([]*UserState, error) {
	return m.storage.GetAllStates(ctx)
}

func (m *machine) TransitionTo(ctx context.Context, userID string, next State, update func(*UserState)) (*UserState, error) {
	current, err := m.Current(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !IsTransitionAllowed(current.CurrentState, next) {
		m.log.Warn("invalid state transition", "user_id", userID, "from", current.CurrentState, "to", next)
		return nil, ErrInvalidTransition
	}

	updated := current.clone()
	if update != nil {
		update(updated)
	}
	updated.UserID = userID
	updated.CurrentState = next

	if next == StateIdle {
		if err := m.storage.ClearState(ctx, userID); err != nil {
			return nil, err
		}
		transitionRecorder(string(current.CurrentState), string(next))
		return idleState(userID), nil
	}

	if err := m.storage.SetState(ctx, userID, updated); err != nil {
		return nil, err
	}

	transitionRecorder(string(current.CurrentState), string(next))
	return updated, nil
}

func (m *machine) Reset(ctx context.Context, userID string) error {
	current, err := m.Current(ctx, userID)
	if err != nil {
		return err
	}

	if err := m.storage.ClearState(ctx, userID); err != nil {
		return err
	}

	if current.CurrentState != StateIdle {
		transitionRecorder(string(current.CurrentState), string(StateIdle))
	}
	return nil
}
