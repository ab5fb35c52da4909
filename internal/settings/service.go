// Package settings manages maintenance switches and the payment directory.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
)

// Store persists the shop settings singleton.
type Store interface {
	Load(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, fn func(*domain.Settings) error) (domain.Settings, error)
}

// Gatekeeper restricts maintenance switches to admins and payment details
// to the owner.
type Gatekeeper interface {
	RequireAdmin(ctx context.Context, actor string) error
	RequireOwner(actor string) error
}

// Payment fields accepted by SetPayment.
const (
	FieldNumber = "number"
	FieldName   = "name"
)

var features = []string{domain.FeatureOrders, domain.FeatureTopUps, domain.FeatureGeneral}

type Service struct {
	store  Store
	admins Gatekeeper
	log    *slog.Logger
}

func NewService(store Store, admins Gatekeeper, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{store: store, admins: admins, log: log}
}

// Enabled reports whether feature is open to users. Features are enabled
// unless explicitly switched off, and "general" switches off everything.
func (s *Service) Enabled(ctx context.Context, feature string) (bool, error) {
	settings, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}

	return enabled(settings, domain.FeatureGeneral) && enabled(settings, feature), nil
}

func enabled(settings domain.Settings, feature string) bool {
	on, ok := settings.Maintenance[feature]
	return !ok || on
}

// SetMaintenance switches feature on (enabled) or off.
func (s *Service) SetMaintenance(ctx context.Context, actor, feature string, on bool) error {
	if err := s.admins.RequireAdmin(ctx, actor); err != nil {
		return err
	}

	feature = strings.ToLower(strings.TrimSpace(feature))
	if !isFeature(feature) {
		return apperrors.NewValidationError("feature", fmt.Sprintf("unknown feature %q, use one of %s", feature, strings.Join(features, ", ")))
	}

	if _, err := s.store.Update(ctx, func(st *domain.Settings) error {
		st.Maintenance[feature] = on
		return nil
	}); err != nil {
		return err
	}

	s.log.Info("maintenance switched", slog.String("feature", feature), slog.Bool("enabled", on), slog.String("actor", actor))
	return nil
}

// Maintenance returns every feature with its enabled flag.
func (s *Service) Maintenance(ctx context.Context) (map[string]bool, error) {
	settings, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(features))
	for _, f := range features {
		out[f] = enabled(settings, f)
	}
	return out, nil
}

func isFeature(feature string) bool {
	for _, f := range features {
		if f == feature {
			return true
		}
	}
	return false
}

// SetPayment updates one field of a channel's payment account.
func (s *Service) SetPayment(ctx context.Context, actor, channel, field, value string) error {
	if err := s.admins.RequireOwner(actor); err != nil {
		return err
	}

	channel = strings.ToLower(strings.TrimSpace(channel))
	if !domain.IsChannel(channel) {
		return apperrors.NewValidationError("channel", fmt.Sprintf("unknown payment channel %q", channel))
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return apperrors.NewValidationError("value", "value is empty")
	}

	if _, err := s.store.Update(ctx, func(st *domain.Settings) error {
		account := st.Payment[channel]
		switch strings.ToLower(field) {
		case FieldNumber:
			account.Number = value
		case FieldName:
			account.AccountName = value
		default:
			return apperrors.NewValidationError("field", fmt.Sprintf("unknown field %q, use number or name", field))
		}
		st.Payment[channel] = account
		return nil
	}); err != nil {
		return err
	}

	s.log.Info("payment account updated", slog.String("channel", channel), slog.String("field", field), slog.String("actor", actor))
	return nil
}

// Payment returns the account users should pay into for channel.
func (s *Service) Payment(ctx context.Context, channel string) (domain.PaymentAccount, error) {
	settings, err := s.store.Load(ctx)
	if err != nil {
		return domain.PaymentAccount{}, err
	}

	return settings.Payment[channel], nil
}
