package state

import (
	"context"
	"log/slog"
	"time"
)

// DraftExpirer discards a user's draft if it is still older than cutoff when
// checked under the account lock.
type DraftExpirer interface {
	ExpireDraft(ctx context.Context, userID string, cutoff time.Time) (bool, error)
}

// Cleaner expires abandoned top-up drafts on a schedule. Awaiting-approval
// sessions are never touched.
type Cleaner struct {
	storage  Storage
	expirer  DraftExpirer
	log      *slog.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewCleaner constructs a Cleaner instance.
func NewCleaner(storage Storage, expirer DraftExpirer, log *slog.Logger, ttl, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		storage:  storage,
		expirer:  expirer,
		log:      log,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Run starts the cleanup loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.storage == nil || c.expirer == nil || c.ttl <= 0 || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("state cleaner stopped", slog.Any("reason", ctx.Err()))
			return
		case <-ticker.C:
			if _, err := c.Sweep(ctx); err != nil {
				c.log.Error("state cleaner sweep failed", slog.Any("error", err))
			}
		}
	}
}

// Sweep expires every draft older than the configured TTL and returns how
// many were discarded.
func (c *Cleaner) Sweep(ctx context.Context) (int, error) {
	states, err := c.storage.GetAllStates(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := c.now().Add(-c.ttl)
	expired := 0

	for _, st := range states {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}

		if !st.HasDraft() || !st.Draft.CreatedAt.Before(cutoff) {
			continue
		}

		ok, err := c.expirer.ExpireDraft(ctx, st.UserID, cutoff)
		if err != nil {
			c.log.Error("state cleaner failed to expire draft", slog.String("user_id", st.UserID), slog.Any("error", err))
			continue
		}

		if ok {
			expired++
			c.log.Info("top-up draft expired", slog.String("user_id", st.UserID))
		}
	}

	return expired, nil
}
