// Package state manages top-up sessions and the restriction flag for bot users.
package state

import (
	"context"
	"sync"
	"time"
)

// Storage defines the persistence contract for user session state.
type Storage interface {
	// GetState returns the current state for the specified user or ErrStateNotFound.
	GetState(ctx context.Context, userID string) (*UserState, error)
	// SetState saves the provided state for the specified user.
	SetState(ctx context.Context, userID string, state *UserState) error
	// ClearState removes the state for the specified user.
	ClearState(ctx context.Context, userID string) error
	// GetAllStates returns every stored state.
	GetAllStates(ctx context.Context) ([]*UserState, error)
}

// MemoryStorage keeps sessions in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	states map[string]*UserState
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{states: make(map[string]*UserState)}
}

func (s *MemoryStorage) GetState(_ context.Context, userID string) (*UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[userID]
	if !ok {
		return nil, ErrStateNotFound
	}

	return st.clone(), nil
}

func (s *MemoryStorage) SetState(_ context.Context, userID string, state *UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := state.clone()
	cp.UpdatedAt = time.Now().UTC()
	s.states[userID] = cp
	return nil
}

func (s *MemoryStorage) ClearState(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, userID)
	return nil
}

func (s *MemoryStorage) GetAllStates(_ context.Context) ([]*UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*UserState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st.clone())
	}
	return out, nil
}
