// Package repository persists accounts and shop settings.
package repository

import (
	"context"
	"errors"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrRecordNotFound  = errors.New("record not found")
)

// Backend is a storage engine for accounts and settings.
//
// Update loads one account, passes it to fn and commits the result in a single
// round-trip while no other Update for the same account can interleave. If fn
// returns an error nothing is written and that error is returned unchanged.
type Backend interface {
	Load(ctx context.Context, userID string) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, userID string, fn func(*domain.Account) error) (*domain.Account, error)
	List(ctx context.Context) ([]*domain.Account, error)

	OwnerOfOrder(ctx context.Context, orderID string) (string, error)
	OwnerOfTopUp(ctx context.Context, topUpID string) (string, error)

	LoadSettings(ctx context.Context) (domain.Settings, error)
	UpdateSettings(ctx context.Context, fn func(*domain.Settings) error) (domain.Settings, error)

	Name() string
	Ping(ctx context.Context) error
	Close() error
}
