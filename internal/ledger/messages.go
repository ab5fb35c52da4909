package ledger

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
)

// maxMessageLength is the Telegram limit for one text message.
const maxMessageLength = 4096

// MessageUser relays text from an admin to userID.
func (s *Service) MessageUser(ctx context.Context, admin domain.Actor, userID, text string) (err error) {
	defer func() { observe("message_user", err) }()

	if err := s.access.RequireAdmin(ctx, admin.ID); err != nil {
		return err
	}
	if err := validateRecipient(userID); err != nil {
		return err
	}
	text, err = validateText(text)
	if err != nil {
		return err
	}

	s.log.Info("admin message to user", slog.String("user_id", userID), slog.String("admin_id", admin.ID))
	s.publish(ctx, notify.Event{
		Type:       notify.EventAdminMessage,
		Recipients: []notify.Recipient{notify.ToUser(userID)},
		User:       domain.Profile{UserID: userID},
		Actor:      admin,
		Text:       text,
	})
	return nil
}

// ThankUser tells userID that their order was delivered.
func (s *Service) ThankUser(ctx context.Context, admin domain.Actor, userID string) (err error) {
	defer func() { observe("order_done", err) }()

	if err := s.access.RequireAdmin(ctx, admin.ID); err != nil {
		return err
	}
	if err := validateRecipient(userID); err != nil {
		return err
	}

	s.log.Info("order done message sent", slog.String("user_id", userID), slog.String("admin_id", admin.ID))
	s.publish(ctx, notify.Event{
		Type:       notify.EventOrderDone,
		Recipients: []notify.Recipient{notify.ToUser(userID)},
		User:       domain.Profile{UserID: userID},
		Actor:      admin,
	})
	return nil
}

// AnnounceToOps posts text from an admin to the operations channel.
func (s *Service) AnnounceToOps(ctx context.Context, admin domain.Actor, text string) (err error) {
	defer func() { observe("ops_announcement", err) }()

	if err := s.access.RequireAdmin(ctx, admin.ID); err != nil {
		return err
	}
	if s.opsChatID == 0 {
		return apperrors.NewValidationError("ops_channel", "no operations channel is configured")
	}
	text, err = validateText(text)
	if err != nil {
		return err
	}

	s.log.Info("admin announcement to ops channel", slog.String("admin_id", admin.ID))
	s.publish(ctx, notify.Event{
		Type:       notify.EventOpsAnnouncement,
		Recipients: []notify.Recipient{notify.ToOps()},
		Actor:      admin,
		Text:       text,
	})
	return nil
}

func validateRecipient(userID string) error {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil || id <= 0 {
		return apperrors.NewValidationError("user_id", "expected a numeric Telegram user id")
	}
	return nil
}

func validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.NewValidationError("text", "message is empty")
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return "", apperrors.NewValidationError("text", "message is longer than 4096 characters")
	}
	return text, nil
}
