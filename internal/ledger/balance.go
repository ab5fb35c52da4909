package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
	"github.com/Proton-105/mlbb-topup-bot/internal/state"
	"github.com/Proton-105/mlbb-topup-bot/pkg/metrics"
)

// GrantBalance credits amount to userID outside the top-up flow.
func (s *Service) GrantBalance(ctx context.Context, admin domain.Actor, userID string, amount int64) (balance int64, err error) {
	defer func() { observe("grant_balance", err) }()
	if err := validateAmount(amount); err != nil {
		return 0, err
	}
	return s.adjust(ctx, admin, userID, amount)
}

// DeductBalance debits amount from userID. The balance never goes negative.
func (s *Service) DeductBalance(ctx context.Context, admin domain.Actor, userID string, amount int64) (balance int64, err error) {
	defer func() { observe("deduct_balance", err) }()
	if err := validateAmount(amount); err != nil {
		return 0, err
	}
	return s.adjust(ctx, admin, userID, -amount)
}

func (s *Service) adjust(ctx context.Context, admin domain.Actor, userID string, delta int64) (int64, error) {
	if err := s.access.RequireAdmin(ctx, admin.ID); err != nil {
		return 0, err
	}

	var balance int64
	err := s.withAccount(ctx, userID, func() error {
		var err error
		balance, err = s.accounts.AdjustBalance(ctx, userID, delta)
		return err
	})
	if err != nil {
		return 0, err
	}

	if delta > 0 {
		metrics.RecordCredit(delta)
	} else {
		metrics.RecordDebit(-delta)
	}

	s.log.Info("balance adjusted",
		slog.String("user_id", userID),
		slog.Int64("delta", delta),
		slog.Int64("balance", balance),
		slog.String("admin_id", admin.ID),
	)

	s.publish(ctx, notify.Event{
		Type:       notify.EventBalanceAdjusted,
		Recipients: []notify.Recipient{notify.ToUser(userID)},
		User:       domain.Profile{UserID: userID},
		Actor:      admin,
		Amount:     delta,
		Balance:    balance,
	})

	return balance, nil
}

// Balance returns the caller's account, creating it on first contact.
func (s *Service) Balance(ctx context.Context, user domain.Profile) (*domain.Account, error) {
	if err := s.Guard(ctx, user.UserID); err != nil {
		return nil, err
	}
	if err := s.requireAuthorized(ctx, user.UserID); err != nil {
		return nil, err
	}

	return s.ensureAccount(ctx, user)
}

type HistoryKind string

const (
	HistoryOrder HistoryKind = "order"
	HistoryTopUp HistoryKind = "topup"
)

type HistoryEntry struct {
	Kind      HistoryKind
	ID        string
	Label     string
	Amount    int64
	Status    string
	CreatedAt time.Time
}

type HistoryPage struct {
	Entries []HistoryEntry
	Page    int
	Pages   int
	Total   int
}

// History returns one page of the user's orders and top-ups, newest first.
func (s *Service) History(ctx context.Context, userID string, page, pageSize int) (*HistoryPage, error) {
	if err := s.Guard(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.requireAuthorized(ctx, userID); err != nil {
		return nil, err
	}

	acc, err := s.accounts.Get(ctx, userID)
	if errors.Is(err, &apperrors.AppError{Kind: apperrors.KindNotFound, Entity: "account"}) {
		acc, err = &domain.Account{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(acc.Orders)+len(acc.TopUps))
	for _, o := range acc.Orders {
		entries = append(entries, HistoryEntry{
			Kind:      HistoryOrder,
			ID:        o.ID,
			Label:     o.ProductCode + " → " + o.GameID + " (" + o.ServerID + ")",
			Amount:    -o.Price,
			Status:    string(o.Status),
			CreatedAt: o.CreatedAt,
		})
	}
	for _, t := range acc.TopUps {
		entries = append(entries, HistoryEntry{
			Kind:      HistoryTopUp,
			ID:        t.ID,
			Label:     t.Channel,
			Amount:    t.Amount,
			Status:    string(t.Status),
			CreatedAt: t.CreatedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	if pageSize <= 0 {
		pageSize = 5
	}
	pages := (len(entries) + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}

	return &HistoryPage{
		Entries: entries[start:end],
		Page:    page,
		Pages:   pages,
		Total:   len(entries),
	}, nil
}

// ExpireDraft discards the user's draft if it was created before cutoff.
func (s *Service) ExpireDraft(ctx context.Context, userID string, cutoff time.Time) (expired bool, err error) {
	err = s.withAccount(ctx, userID, func() error {
		st, err := s.session(ctx, userID)
		if err != nil {
			return err
		}
		if !st.HasDraft() || !st.Draft.CreatedAt.Before(cutoff) {
			return nil
		}

		if _, err := s.transition(ctx, userID, state.StateIdle, nil); err != nil {
			return err
		}
		expired = true
		return nil
	})

	return expired, err
}
