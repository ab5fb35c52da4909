// Package access decides who may use the shop and who may administer it.
package access

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/lock"
	"github.com/Proton-105/mlbb-topup-bot/internal/state"
)

const restrictionLockTimeout = 15 * time.Second

// SettingsStore holds the authorized set and admin list.
type SettingsStore interface {
	Load(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, fn func(*domain.Settings) error) (domain.Settings, error)
}

// Sessions is the part of the session machine used to lift an
// awaiting-approval restriction.
type Sessions interface {
	Current(ctx context.Context, userID string) (*state.UserState, error)
	Reset(ctx context.Context, userID string) error
}

// Registry answers authorization questions. The owner is implicit: always an
// admin and always authorized.
type Registry struct {
	ownerID  string
	store    SettingsStore
	sessions Sessions
	locker   lock.Locker
	log      *slog.Logger
}

// NewRegistry builds a Registry. locker must be the one the ledger uses so
// lifting a restriction never interleaves with a top-up submission.
func NewRegistry(ownerID string, store SettingsStore, sessions Sessions, locker lock.Locker, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}

	return &Registry{
		ownerID:  ownerID,
		store:    store,
		sessions: sessions,
		locker:   locker,
		log:      log,
	}
}

func (r *Registry) OwnerID() string {
	return r.ownerID
}

func (r *Registry) IsOwner(id string) bool {
	return id != "" && id == r.ownerID
}

func (r *Registry) IsAdmin(ctx context.Context, id string) (bool, error) {
	if r.IsOwner(id) {
		return true, nil
	}

	settings, err := r.store.Load(ctx)
	if err != nil {
		return false, err
	}

	return slices.Contains(settings.AdminIDs, id), nil
}

func (r *Registry) IsAuthorized(ctx context.Context, id string) (bool, error) {
	if r.IsOwner(id) {
		return true, nil
	}

	settings, err := r.store.Load(ctx)
	if err != nil {
		return false, err
	}

	return slices.Contains(settings.AdminIDs, id) || slices.Contains(settings.AuthorizedUsers, id), nil
}

// RequireAdmin returns an AdminOnly error unless actor is an admin.
func (r *Registry) RequireAdmin(ctx context.Context, actor string) error {
	ok, err := r.IsAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewAdminOnlyError()
	}
	return nil
}

// RequireOwner returns an OwnerOnly error unless actor is the owner.
func (r *Registry) RequireOwner(actor string) error {
	if !r.IsOwner(actor) {
		return apperrors.NewOwnerOnlyError()
	}
	return nil
}

// Authorize adds id to the authorized set. Authorizing twice is a no-op.
func (r *Registry) Authorize(ctx context.Context, actor, id string) error {
	if err := r.RequireAdmin(ctx, actor); err != nil {
		return err
	}
	if id == "" {
		return apperrors.NewValidationError("user_id", "user id is empty")
	}

	if _, err := r.store.Update(ctx, func(s *domain.Settings) error {
		if !slices.Contains(s.AuthorizedUsers, id) {
			s.AuthorizedUsers = append(s.AuthorizedUsers, id)
		}
		return nil
	}); err != nil {
		return err
	}

	r.log.Info("user authorized", slog.String("user_id", id), slog.String("actor", actor))
	r.clearRestriction(ctx, id)
	return nil
}

// Revoke removes id from the authorized set.
func (r *Registry) Revoke(ctx context.Context, actor, id string) error {
	if err := r.RequireAdmin(ctx, actor); err != nil {
		return err
	}

	if _, err := r.store.Update(ctx, func(s *domain.Settings) error {
		idx := slices.Index(s.AuthorizedUsers, id)
		if idx < 0 {
			return apperrors.NewNotFoundError("authorized user", id)
		}
		s.AuthorizedUsers = slices.Delete(s.AuthorizedUsers, idx, idx+1)
		return nil
	}); err != nil {
		return err
	}

	r.log.Info("user revoked", slog.String("user_id", id), slog.String("actor", actor))
	r.clearRestriction(ctx, id)
	return nil
}

func (r *Registry) AddAdmin(ctx context.Context, actor, id string) error {
	if err := r.RequireOwner(actor); err != nil {
		return err
	}
	if id == "" {
		return apperrors.NewValidationError("admin", "user id is empty")
	}
	if r.IsOwner(id) {
		return nil
	}

	if _, err := r.store.Update(ctx, func(s *domain.Settings) error {
		if !slices.Contains(s.AdminIDs, id) {
			s.AdminIDs = append(s.AdminIDs, id)
		}
		return nil
	}); err != nil {
		return err
	}

	r.log.Info("admin added", slog.String("user_id", id))
	return nil
}

func (r *Registry) RemoveAdmin(ctx context.Context, actor, id string) error {
	if err := r.RequireOwner(actor); err != nil {
		return err
	}
	if r.IsOwner(id) {
		return apperrors.NewValidationError("admin", "the owner cannot be removed")
	}

	if _, err := r.store.Update(ctx, func(s *domain.Settings) error {
		idx := slices.Index(s.AdminIDs, id)
		if idx < 0 {
			return apperrors.NewNotFoundError("admin", id)
		}
		s.AdminIDs = slices.Delete(s.AdminIDs, idx, idx+1)
		return nil
	}); err != nil {
		return err
	}

	r.log.Info("admin removed", slog.String("user_id", id))
	return nil
}

// Admins returns the owner followed by every other admin.
func (r *Registry) Admins(ctx context.Context) ([]string, error) {
	settings, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	admins := make([]string, 0, len(settings.AdminIDs)+1)
	if r.ownerID != "" {
		admins = append(admins, r.ownerID)
	}
	for _, id := range settings.AdminIDs {
		if id != r.ownerID {
			admins = append(admins, id)
		}
	}

	return admins, nil
}

// clearRestriction lifts an awaiting-approval restriction of id. Drafts and
// idle sessions are left alone.
func (r *Registry) clearRestriction(ctx context.Context, id string) {
	if r.sessions == nil {
		return
	}

	lockCtx, cancel := context.WithTimeout(ctx, restrictionLockTimeout)
	defer cancel()

	unlock, err := r.locker.Lock(lockCtx, lock.AccountKey(id))
	if err != nil {
		r.log.Error("failed to lock account to clear restriction", slog.String("user_id", id), slog.Any("error", err))
		return
	}
	defer unlock()

	st, err := r.sessions.Current(ctx, id)
	if err != nil {
		r.log.Error("failed to load session to clear restriction", slog.String("user_id", id), slog.Any("error", err))
		return
	}
	if !st.Restricted() {
		return
	}

	if err := r.sessions.Reset(ctx, id); err != nil {
		r.log.Error("failed to clear restriction", slog.String("user_id", id), slog.Any("error", err))
		return
	}
	r.log.Info("restriction cleared", slog.String("user_id", id))
}
