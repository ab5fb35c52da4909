package ledger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
	"github.com/Proton-105/mlbb-topup-bot/pkg/metrics"
)

type PlaceOrderRequest struct {
	User        domain.Profile
	ProductCode string
	GameID      string
	ServerID    string
	ChatID      int64
}

// OrderResult is an order together with the owner's balance after the change.
type OrderResult struct {
	UserID  string
	User    domain.Profile
	Order   domain.Order
	Balance int64
}

// PlaceOrder debits the product price and records a pending order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (res *OrderResult, err error) {
	defer func() { observe("place_order", err) }()

	userID := req.User.UserID
	if err := s.requireAuthorized(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.requireFeature(ctx, domain.FeatureOrders); err != nil {
		return nil, err
	}

	err = s.withAccount(ctx, userID, func() error {
		st, err := s.session(ctx, userID)
		if err != nil {
			return err
		}
		if st.Restricted() {
			return apperrors.NewAwaitingApprovalError()
		}
		if st.HasDraft() {
			return apperrors.NewDraftInProgressError()
		}

		acc, err := s.ensureAccount(ctx, req.User)
		if err != nil {
			return err
		}
		if acc.PendingTopUp() != nil {
			return apperrors.NewPendingApprovalExistsError()
		}

		gameID := strings.TrimSpace(req.GameID)
		serverID := strings.TrimSpace(req.ServerID)
		if !isDigits(gameID, 6, 10) {
			return apperrors.NewValidationError("game_id", "game id must be 6 to 10 digits")
		}
		if !isDigits(serverID, 3, 5) {
			return apperrors.NewValidationError("server_id", "server id must be 3 to 5 digits")
		}

		if s.banned.Match(gameID) {
			s.log.Warn("order for banned game id rejected", slog.String("user_id", userID), slog.String("game_id", gameID))
			s.publish(ctx, notify.Event{
				Type:       notify.EventBannedAttempt,
				Recipients: []notify.Recipient{notify.ToAdmins("")},
				User:       profileOf(acc),
				GameID:     gameID,
			})
			return apperrors.NewBannedAccountError(gameID)
		}

		code := strings.ToLower(strings.TrimSpace(req.ProductCode))
		price, err := s.prices.Resolve(code)
		if err != nil {
			return err
		}

		if acc.Balance < price {
			return apperrors.NewInsufficientFundsError(price, acc.Balance)
		}

		now := s.now()
		order := domain.Order{
			ID:          s.ids.next(orderPrefix, userID, now),
			ProductCode: code,
			GameID:      gameID,
			ServerID:    serverID,
			Price:       price,
			Status:      domain.OrderPending,
			CreatedAt:   now,
			ChatID:      req.ChatID,
		}

		updated, err := s.accounts.AppendOrder(ctx, userID, order)
		if err != nil {
			return err
		}

		res = &OrderResult{UserID: userID, User: profileOf(updated), Order: order, Balance: updated.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordDebit(res.Order.Price)
	s.log.Info("order placed",
		slog.String("order_id", res.Order.ID),
		slog.String("user_id", userID),
		slog.String("product", res.Order.ProductCode),
		slog.Int64("price", res.Order.Price),
	)

	order := res.Order
	s.publish(ctx, notify.Event{
		Type:       notify.EventOrderPlaced,
		Recipients: []notify.Recipient{notify.ToAdmins(""), notify.ToOps()},
		User:       res.User,
		Order:      &order,
		Balance:    res.Balance,
	})

	return res, nil
}

// ConfirmOrder marks a pending order as delivered.
func (s *Service) ConfirmOrder(ctx context.Context, orderID string, admin domain.Actor) (res *OrderResult, err error) {
	defer func() { observe("confirm_order", err) }()
	return s.resolveOrder(ctx, orderID, admin, domain.OrderConfirmed)
}

// CancelOrder marks a pending order as cancelled and refunds its price.
func (s *Service) CancelOrder(ctx context.Context, orderID string, admin domain.Actor) (res *OrderResult, err error) {
	defer func() { observe("cancel_order", err) }()
	return s.resolveOrder(ctx, orderID, admin, domain.OrderCancelled)
}

func (s *Service) resolveOrder(ctx context.Context, orderID string, admin domain.Actor, status domain.OrderStatus) (*OrderResult, error) {
	if err := s.access.RequireAdmin(ctx, admin.ID); err != nil {
		return nil, err
	}

	userID, _, err := s.accounts.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var res *OrderResult
	err = s.withAccount(ctx, userID, func() error {
		updated, err := s.accounts.Update(ctx, userID, func(acc *domain.Account) error {
			_, order := acc.Order(orderID)
			if order == nil {
				return apperrors.NewNotFoundError("order", orderID)
			}
			if order.IsTerminal() {
				return apperrors.NewAlreadyProcessedError("order", orderID)
			}

			now := s.now()
			order.Status = status
			order.ResolvedBy = admin.ID
			order.ResolvedByName = admin.Name
			order.ResolvedAt = &now

			if status == domain.OrderCancelled {
				acc.Balance += order.Price
			}
			return nil
		})
		if err != nil {
			return err
		}

		_, order := updated.Order(orderID)
		res = &OrderResult{UserID: userID, User: profileOf(updated), Order: *order, Balance: updated.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := notify.EventOrderConfirmed
	if status == domain.OrderCancelled {
		eventType = notify.EventOrderCancelled
		metrics.RecordCredit(res.Order.Price)
	}

	s.log.Info("order resolved",
		slog.String("order_id", orderID),
		slog.String("status", string(status)),
		slog.String("admin_id", admin.ID),
	)

	order := res.Order
	s.publish(ctx, notify.Event{
		Type: eventType,
		Recipients: []notify.Recipient{
			notify.ToChat(order.ChatID),
			notify.ToUser(userID),
			notify.ToAdmins(admin.ID),
		},
		User:    res.User,
		Actor:   admin,
		Order:   &order,
		Balance: res.Balance,
	})

	return res, nil
}

func isDigits(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
