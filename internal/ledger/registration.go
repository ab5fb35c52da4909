package ledger

import (
	"context"
	"log/slog"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
)

// RequestRegistration records the user and asks the admins for access.
// It reports false when the user is already authorized.
func (s *Service) RequestRegistration(ctx context.Context, user domain.Profile) (bool, error) {
	ok, err := s.access.IsAuthorized(ctx, user.UserID)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}

	if _, err := s.accounts.UpsertAccount(ctx, user); err != nil {
		return false, err
	}

	s.log.Info("registration requested", slog.String("user_id", user.UserID))
	s.publish(ctx, notify.Event{
		Type:       notify.EventRegistrationRequested,
		Recipients: []notify.Recipient{notify.ToAdmins("")},
		User:       user,
	})

	return true, nil
}

// ApproveRegistration authorizes userID and tells them.
func (s *Service) ApproveRegistration(ctx context.Context, admin domain.Actor, userID string) error {
	if err := s.access.Authorize(ctx, admin.ID, userID); err != nil {
		return err
	}

	s.publish(ctx, notify.Event{
		Type:       notify.EventRegistrationApproved,
		Recipients: []notify.Recipient{notify.ToUser(userID)},
		User:       domain.Profile{UserID: userID},
		Actor:      admin,
	})
	return nil
}

// RejectRegistration tells userID the request was declined.
func (s *Service) RejectRegistration(ctx context.Context, admin domain.Actor, userID string) error {
	if err := s.access.RequireAdmin(ctx, admin.ID); err != nil {
		return err
	}
	if userID == "" {
		return apperrors.NewValidationError("user_id", "user id is empty")
	}

	s.log.Info("registration rejected", slog.String("user_id", userID), slog.String("admin_id", admin.ID))
	s.publish(ctx, notify.Event{
		Type:       notify.EventRegistrationRejected,
		Recipients: []notify.Recipient{notify.ToUser(userID)},
		User:       domain.Profile{UserID: userID},
		Actor:      admin,
	})
	return nil
}
