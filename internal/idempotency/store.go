package idempotency

import (
	"context"
	"time"
)

// Store persists the processing state of keys.
type Store interface {
	// Begin atomically claims key as processing. It reports false when the
	// key already exists in any status.
	Begin(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Complete marks key as done and keeps it for ttl.
	Complete(ctx context.Context, key string, ttl time.Duration) error
	// Abort forgets key.
	Abort(ctx context.Context, key string) error
	// Status returns the status of key or "" when unknown.
	Status(ctx context.Context, key string) (string, error)
}
