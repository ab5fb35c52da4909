// Package ledger implements the order and top-up lifecycle on top of the
// account store. It is the only place that issues status transitions and
// balance movements.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/lock"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
	"github.com/Proton-105/mlbb-topup-bot/internal/repository"
	"github.com/Proton-105/mlbb-topup-bot/internal/state"
	"github.com/Proton-105/mlbb-topup-bot/pkg/metrics"
)

const lockTimeout = 15 * time.Second

// Authorizer is the part of the access registry the lifecycle needs.
type Authorizer interface {
	IsAuthorized(ctx context.Context, id string) (bool, error)
	RequireAdmin(ctx context.Context, actor string) error
	Authorize(ctx context.Context, actor, id string) error
}

type PriceResolver interface {
	Resolve(code string) (int64, error)
}

// FeatureGate reports maintenance switches.
type FeatureGate interface {
	Enabled(ctx context.Context, feature string) (bool, error)
}

type PaymentDirectory interface {
	Payment(ctx context.Context, channel string) (domain.PaymentAccount, error)
}

type Deps struct {
	Accounts  *repository.AccountStore
	Access    Authorizer
	Prices    PriceResolver
	Sessions  state.StateMachine
	Locker    lock.Locker
	Publisher notify.Publisher
	Features  FeatureGate
	Payments  PaymentDirectory
	Log       *slog.Logger
}

type Config struct {
	MinTopUp      int64
	BannedGameIDs []string
	// OpsChannelID is zero when no operations channel is configured.
	OpsChannelID  int64
}

type Service struct {
	accounts  *repository.AccountStore
	access    Authorizer
	prices    PriceResolver
	sessions  state.StateMachine
	locker    lock.Locker
	publisher notify.Publisher
	features  FeatureGate
	payments  PaymentDirectory
	banned    *BannedPatterns
	minTopUp  int64
	opsChatID int64
	ids       *idGenerator
	now       func() time.Time
	log       *slog.Logger
}

func NewService(deps Deps, cfg Config) *Service {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	publisher := deps.Publisher
	if publisher == nil {
		publisher = notify.Nop{}
	}

	locker := deps.Locker
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}

	return &Service{
		accounts:  deps.Accounts,
		access:    deps.Access,
		prices:    deps.Prices,
		sessions:  deps.Sessions,
		locker:    locker,
		publisher: publisher,
		features:  deps.Features,
		payments:  deps.Payments,
		banned:    NewBannedPatterns(cfg.BannedGameIDs),
		minTopUp:  cfg.MinTopUp,
		opsChatID: cfg.OpsChannelID,
		ids:       newIDGenerator(),
		now:       time.Now,
		log:       log,
	}
}

// withAccount runs fn while holding the per-account lock of userID.
func (s *Service) withAccount(ctx context.Context, userID string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(lockCtx, lock.AccountKey(userID))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.Wrap(apperrors.NewPersistenceError("lock", nil), err)
	}
	defer unlock()

	return fn()
}

func (s *Service) requireAuthorized(ctx context.Context, userID string) error {
	ok, err := s.access.IsAuthorized(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewUnauthorizedError()
	}
	return nil
}

func (s *Service) requireFeature(ctx context.Context, feature string) error {
	if s.features == nil {
		return nil
	}

	ok, err := s.features.Enabled(ctx, feature)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewFeatureDisabledError(feature)
	}
	return nil
}

func (s *Service) session(ctx context.Context, userID string) (*state.UserState, error) {
	st, err := s.sessions.Current(ctx, userID)
	if err != nil {
		return nil, sessionErr(err)
	}
	return st, nil
}

func (s *Service) transition(ctx context.Context, userID string, next state.State, update func(*state.UserState)) (*state.UserState, error) {
	st, err := s.sessions.TransitionTo(ctx, userID, next, update)
	if err != nil {
		return nil, sessionErr(err)
	}
	return st, nil
}

func sessionErr(err error) error {
	if errors.Is(err, state.ErrInvalidTransition) {
		return apperrors.Wrap(apperrors.NewStateError("session transition not allowed"), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.Wrap(apperrors.NewPersistenceError("session", nil), err)
}

// ensureAccount returns the account of profile, creating it on first contact.
func (s *Service) ensureAccount(ctx context.Context, profile domain.Profile) (*domain.Account, error) {
	if profile.Name == "" && profile.Username == "" {
		acc, err := s.accounts.Get(ctx, profile.UserID)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, &apperrors.AppError{Kind: apperrors.KindNotFound, Entity: "account"}) {
			return nil, err
		}
	}

	return s.accounts.UpsertAccount(ctx, profile)
}

// Guard rejects restricted users. The transport calls it before serving
// non-lifecycle commands.
func (s *Service) Guard(ctx context.Context, userID string) error {
	st, err := s.session(ctx, userID)
	if err != nil {
		return err
	}
	if st.Restricted() {
		return apperrors.NewAwaitingApprovalError()
	}
	return nil
}

func (s *Service) publish(ctx context.Context, ev notify.Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	s.publisher.Publish(ctx, ev)
}

func profileOf(acc *domain.Account) domain.Profile {
	return domain.Profile{UserID: acc.UserID, Name: acc.Name, Username: acc.Username}
}

func observe(operation string, err error) {
	if err == nil {
		metrics.RecordLifecycle(operation, "ok")
		return
	}

	kind := string(apperrors.KindOf(err))
	if kind == "" {
		kind = "internal"
	}
	metrics.RecordLifecycle(operation, kind)
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return apperrors.NewValidationError("amount", fmt.Sprintf("amount must be positive, got %d", amount))
	}
	return nil
}
