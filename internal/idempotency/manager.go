// Package idempotency makes update handling at-most-once per key.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrRequestInProgress is returned when another worker holds the key.
var ErrRequestInProgress = errors.New("request with this key is already in progress")

// Status values of a stored record.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Operation is the unit of work guarded by a key.
type Operation func(ctx context.Context) error

// Result reports whether the operation ran or was recognised as a repeat.
type Result struct {
	Duplicate bool
}

// Manager runs operations at most once per key.
type Manager interface {
	Execute(ctx context.Context, key string, fn Operation) (*Result, error)
}

type manager struct {
	store       Store
	ttl         time.Duration
	inFlightTTL time.Duration
	log         *slog.Logger
}

// NewManager builds a Manager that remembers completed keys for ttl.
func NewManager(store Store, ttl time.Duration, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &manager{
		store:       store,
		ttl:         ttl,
		inFlightTTL: 5 * time.Minute,
		log:         log,
	}
}

// Execute claims key and runs fn. A completed key is reported as a duplicate
// without running fn. When fn fails the claim is dropped so a retry can run.
func (m *manager) Execute(ctx context.Context, key string, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	claimed, err := m.store.Begin(ctx, key, m.inFlightTTL)
	if err != nil {
		return nil, err
	}

	if !claimed {
		status, err := m.store.Status(ctx, key)
		if err != nil {
			return nil, err
		}
		if status == StatusCompleted {
			m.log.DebugContext(ctx, "duplicate request skipped", slog.String("key", key))
			return &Result{Duplicate: true}, nil
		}
		return nil, ErrRequestInProgress
	}

	if err := fn(ctx); err != nil {
		if abortErr := m.store.Abort(context.WithoutCancel(ctx), key); abortErr != nil {
			m.log.WarnContext(ctx, "failed to release idempotency key", slog.String("key", key), slog.Any("error", abortErr))
		}
		return nil, err
	}

	if err := m.store.Complete(context.WithoutCancel(ctx), key, m.ttl); err != nil {
		m.log.WarnContext(ctx, "failed to mark request completed", slog.String("key", key), slog.Any("error", err))
	}

	return &Result{}, nil
}
