package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/repository"
)

func newTable(t *testing.T) (*Table, *repository.SettingsStore) {
	t.Helper()

	store := repository.NewSettingsStore(repository.NewInMemory(), nil)
	table := NewTable(store, 6000)
	require.NoError(t, table.Load(context.Background()))
	return table, store
}

func TestResolve(t *testing.T) {
	table, _ := newTable(t)

	tests := []struct {
		code  string
		price int64
	}{
		{"86", 5100},
		{"11", 950},
		{"12976", 714000},
		{"565", 33000},
		{"wp1", 6000},
		{"WP3", 18000},
		{"wp10", 60000},
	}

	for _, tc := range tests {
		price, err := table.Resolve(tc.code)
		require.NoError(t, err, tc.code)
		assert.Equal(t, tc.price, price, tc.code)
	}

	for _, code := range []string{"999", "wp11", "wp0", ""} {
		_, err := table.Resolve(code)
		assert.True(t, errors.Is(err, apperrors.ErrUnknownProduct), code)
	}
}

func TestSetOverrideTakesPrecedenceAndPersists(t *testing.T) {
	ctx := context.Background()
	table, store := newTable(t)

	require.NoError(t, table.SetOverride(ctx, "86", 5300))
	price, err := table.Resolve("86")
	require.NoError(t, err)
	assert.Equal(t, int64(5300), price)

	settings, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5300), settings.PriceOverrides["86"])

	reloaded := NewTable(store, 6000)
	require.NoError(t, reloaded.Load(ctx))
	price, err = reloaded.Resolve("86")
	require.NoError(t, err)
	assert.Equal(t, int64(5300), price)
}

func TestSetOverrideRejectsNegative(t *testing.T) {
	table, _ := newTable(t)

	err := table.SetOverride(context.Background(), "86", -1)
	assert.True(t, errors.Is(err, &apperrors.AppError{Kind: apperrors.KindValidation, Field: "price"}))

	price, _ := table.Resolve("86")
	assert.Equal(t, int64(5100), price)
}

func TestSetOverrideBatchArity(t *testing.T) {
	table, _ := newTable(t)

	err := table.SetOverrideBatch(context.Background(), []string{"11", "22"}, []int64{1000})
	assert.True(t, errors.Is(err, &apperrors.AppError{Kind: apperrors.KindValidation, Field: "prices"}))
}

func TestSetGroupAndWeeklyPass(t *testing.T) {
	ctx := context.Background()
	table, _ := newTable(t)

	require.NoError(t, table.SetGroup(ctx, "2x", []int64{3600, 10100, 16100, 33100}))
	price, _ := table.Resolve("275")
	assert.Equal(t, int64(16100), price)

	err := table.SetGroup(ctx, "normal", []int64{1, 2, 3})
	assert.Error(t, err)

	require.NoError(t, table.SetWeeklyPassBase(ctx, 6500))
	price, _ = table.Resolve("wp4")
	assert.Equal(t, int64(26000), price)
}

func TestRemoveOverride(t *testing.T) {
	ctx := context.Background()
	table, _ := newTable(t)

	require.NoError(t, table.SetOverride(ctx, "vip", 99000))
	price, err := table.Resolve("vip")
	require.NoError(t, err)
	assert.Equal(t, int64(99000), price)

	require.NoError(t, table.RemoveOverride(ctx, "vip"))
	_, err = table.Resolve("vip")
	assert.True(t, errors.Is(err, apperrors.ErrUnknownProduct))

	err = table.RemoveOverride(ctx, "vip")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCatalogSections(t *testing.T) {
	ctx := context.Background()
	table, _ := newTable(t)
	require.NoError(t, table.SetOverride(ctx, "starlight", 12000))

	sections := table.Catalog()
	require.Len(t, sections, 4)
	assert.Equal(t, "Weekly Pass", sections[0].Title)
	assert.Len(t, sections[0].Entries, 10)
	assert.Len(t, sections[1].Entries, len(RegularCodes))
	assert.Equal(t, "11", sections[1].Entries[0].Code)
	assert.Equal(t, "Special Items", sections[3].Title)
	assert.Equal(t, []Entry{{Code: "starlight", Price: 12000}}, sections[3].Entries)
}
