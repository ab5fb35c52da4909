package repository

import (
	"context"
	"log/slog"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
)

// SettingsStore reads and writes the shop settings singleton.
type SettingsStore struct {
	backend Backend
	log     *slog.Logger
}

func NewSettingsStore(backend Backend, log *slog.Logger) *SettingsStore {
	if log == nil {
		log = slog.Default()
	}

	return &SettingsStore{backend: backend, log: log}
}

func (s *SettingsStore) Load(ctx context.Context) (domain.Settings, error) {
	settings, err := s.backend.LoadSettings(ctx)
	if err != nil {
		return domain.Settings{}, s.mapErr(err)
	}

	return settings, nil
}

// Update applies fn to the current settings and persists the result.
func (s *SettingsStore) Update(ctx context.Context, fn func(*domain.Settings) error) (domain.Settings, error) {
	settings, err := s.backend.UpdateSettings(ctx, fn)
	if err != nil {
		return domain.Settings{}, s.mapErr(err)
	}

	return settings, nil
}

func (s *SettingsStore) mapErr(err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}

	s.log.Error("settings storage failure", slog.String("backend", s.backend.Name()), slog.Any("error", err))
	return apperrors.Wrap(apperrors.NewPersistenceError(s.backend.Name(), nil), err)
}
