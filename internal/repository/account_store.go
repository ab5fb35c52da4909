package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
)

// AccountStore is the only writer of accounts. It enforces the account
// invariants on top of a Backend: balances never go negative and order and
// top-up histories are append-only.
type AccountStore struct {
	backend Backend
	log     *slog.Logger
	now     func() time.Time
}

func NewAccountStore(backend Backend, log *slog.Logger) *AccountStore {
	if log == nil {
		log = slog.Default()
	}

	return &AccountStore{
		backend: backend,
		log:     log,
		now:     time.Now,
	}
}

func (s *AccountStore) Backend() Backend {
	return s.backend
}

func (s *AccountStore) Get(ctx context.Context, userID string) (*domain.Account, error) {
	acc, err := s.backend.Load(ctx, userID)
	if err != nil {
		return nil, s.mapErr(err, "account", userID)
	}

	return acc, nil
}

// UpsertAccount creates the account for profile or refreshes its name and username.
func (s *AccountStore) UpsertAccount(ctx context.Context, profile domain.Profile) (*domain.Account, error) {
	acc, err := s.Update(ctx, profile.UserID, func(acc *domain.Account) error {
		acc.Name = profile.Name
		acc.Username = profile.Username
		return nil
	})
	if err == nil {
		return acc, nil
	}

	if !errors.Is(err, &apperrors.AppError{Kind: apperrors.KindNotFound, Entity: "account"}) {
		return nil, err
	}

	fresh := &domain.Account{
		UserID:    profile.UserID,
		Name:      profile.Name,
		Username:  profile.Username,
		Orders:    []domain.Order{},
		TopUps:    []domain.TopUp{},
		CreatedAt: s.now(),
		Version:   1,
	}

	if err := s.backend.Create(ctx, fresh); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return s.Get(ctx, profile.UserID)
		}
		return nil, s.mapErr(err, "account", profile.UserID)
	}

	s.log.Info("account created", slog.String("user_id", profile.UserID))
	return fresh, nil
}

// Update runs fn against the account and commits its changes atomically. A
// change that removes or rewrites history entries, or drives the balance
// below zero, is rejected.
func (s *AccountStore) Update(ctx context.Context, userID string, fn func(*domain.Account) error) (*domain.Account, error) {
	acc, err := s.backend.Update(ctx, userID, func(acc *domain.Account) error {
		before := acc.Clone()

		if err := fn(acc); err != nil {
			return err
		}

		if acc.Balance < 0 {
			return apperrors.NewInsufficientFundsError(before.Balance-acc.Balance, before.Balance)
		}

		if err := checkAppendOnly(before, acc); err != nil {
			return err
		}

		acc.Version = before.Version + 1
		return nil
	})
	if err != nil {
		return nil, s.mapErr(err, "account", userID)
	}

	return acc, nil
}

// AppendOrder appends order and debits its price in the same commit.
func (s *AccountStore) AppendOrder(ctx context.Context, userID string, order domain.Order) (*domain.Account, error) {
	return s.Update(ctx, userID, func(acc *domain.Account) error {
		if acc.Balance < order.Price {
			return apperrors.NewInsufficientFundsError(order.Price, acc.Balance)
		}
		acc.Balance -= order.Price
		acc.Orders = append(acc.Orders, order)
		return nil
	})
}

func (s *AccountStore) AppendTopUp(ctx context.Context, userID string, topUp domain.TopUp) (*domain.Account, error) {
	return s.Update(ctx, userID, func(acc *domain.Account) error {
		acc.TopUps = append(acc.TopUps, topUp)
		return nil
	})
}

// AdjustBalance applies delta and returns the new balance.
func (s *AccountStore) AdjustBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	acc, err := s.Update(ctx, userID, func(acc *domain.Account) error {
		if acc.Balance+delta < 0 {
			return apperrors.NewInsufficientFundsError(-delta, acc.Balance)
		}
		acc.Balance += delta
		return nil
	})
	if err != nil {
		return 0, err
	}

	return acc.Balance, nil
}

// FindOrder returns the owner of orderID and the order itself.
func (s *AccountStore) FindOrder(ctx context.Context, orderID string) (string, domain.Order, error) {
	userID, err := s.backend.OwnerOfOrder(ctx, orderID)
	if err != nil {
		return "", domain.Order{}, s.mapErr(err, "order", orderID)
	}

	acc, err := s.Get(ctx, userID)
	if err != nil {
		return "", domain.Order{}, err
	}

	_, order := acc.Order(orderID)
	if order == nil {
		return "", domain.Order{}, apperrors.NewNotFoundError("order", orderID)
	}

	return userID, *order, nil
}

// FindTopUp returns the owner of topUpID and the top-up itself.
func (s *AccountStore) FindTopUp(ctx context.Context, topUpID string) (string, domain.TopUp, error) {
	userID, err := s.backend.OwnerOfTopUp(ctx, topUpID)
	if err != nil {
		return "", domain.TopUp{}, s.mapErr(err, "topup", topUpID)
	}

	acc, err := s.Get(ctx, userID)
	if err != nil {
		return "", domain.TopUp{}, err
	}

	_, topUp := acc.TopUp(topUpID)
	if topUp == nil {
		return "", domain.TopUp{}, apperrors.NewNotFoundError("topup", topUpID)
	}

	return userID, *topUp, nil
}

func (s *AccountStore) List(ctx context.Context) ([]*domain.Account, error) {
	accounts, err := s.backend.List(ctx)
	if err != nil {
		return nil, s.mapErr(err, "account", "*")
	}

	return accounts, nil
}

func (s *AccountStore) mapErr(err error, entity, id string) error {
	if err == nil {
		return nil
	}

	if _, ok := apperrors.As(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrAccountNotFound):
		return apperrors.NewNotFoundError("account", id)
	case errors.Is(err, ErrRecordNotFound):
		return apperrors.NewNotFoundError(entity, id)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}

	s.log.Error("storage failure",
		slog.String("backend", s.backend.Name()),
		slog.String("entity", entity),
		slog.String("id", id),
		slog.Any("error", err),
	)
	return apperrors.Wrap(apperrors.NewPersistenceError(s.backend.Name(), nil), err)
}

func checkAppendOnly(before, after *domain.Account) error {
	if len(after.Orders) < len(before.Orders) || len(after.TopUps) < len(before.TopUps) {
		return apperrors.NewStateError(fmt.Sprintf("account %s: history entries removed", before.UserID))
	}

	for i, o := range before.Orders {
		n := after.Orders[i]
		if n.ID != o.ID || n.Price != o.Price || n.ProductCode != o.ProductCode {
			return apperrors.NewStateError(fmt.Sprintf("account %s: order %s rewritten", before.UserID, o.ID))
		}
		if o.IsTerminal() && n.Status != o.Status {
			return apperrors.NewStateError(fmt.Sprintf("account %s: order %s reopened", before.UserID, o.ID))
		}
	}

	for i, t := range before.TopUps {
		n := after.TopUps[i]
		if n.ID != t.ID || n.Amount != t.Amount || n.Channel != t.Channel {
			return apperrors.NewStateError(fmt.Sprintf("account %s: topup %s rewritten", before.UserID, t.ID))
		}
		if t.IsTerminal() && n.Status != t.Status {
			return apperrors.NewStateError(fmt.Sprintf("account %s: topup %s reopened", before.UserID, t.ID))
		}
	}

	return nil
}
