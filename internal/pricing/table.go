// Package pricing resolves product codes to prices.
package pricing

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
)

// OverrideStore persists admin price overrides.
type OverrideStore interface {
	Load(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, fn func(*domain.Settings) error) (domain.Settings, error)
}

// Table resolves prices from admin overrides, then weekly-pass tiers, then the
// built-in defaults.
type Table struct {
	mu             sync.RWMutex
	overrides      map[string]int64
	weeklyPassBase int64
	store          OverrideStore
}

func NewTable(store OverrideStore, weeklyPassBase int64) *Table {
	return &Table{
		overrides:      map[string]int64{},
		weeklyPassBase: weeklyPassBase,
		store:          store,
	}
}

// Load reads persisted overrides into the table.
func (t *Table) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}

	settings, err := t.store.Load(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.overrides = copyPrices(settings.PriceOverrides)
	t.mu.Unlock()
	return nil
}

func normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Resolve returns the current price of code.
func (t *Table) Resolve(code string) (int64, error) {
	code = normalize(code)

	t.mu.RLock()
	price, ok := t.overrides[code]
	t.mu.RUnlock()
	if ok {
		return price, nil
	}

	if tier, ok := weeklyPassTier(code); ok {
		return int64(tier) * t.weeklyPassBase, nil
	}

	if price, ok := defaultPrices[code]; ok {
		return price, nil
	}

	return 0, apperrors.NewUnknownProductError(code)
}

func weeklyPassTier(code string) (int, bool) {
	if !strings.HasPrefix(code, "wp") {
		return 0, false
	}

	tier, err := strconv.Atoi(strings.TrimPrefix(code, "wp"))
	if err != nil || tier < 1 || tier > weeklyPassTiers {
		return 0, false
	}

	return tier, true
}

// SetOverride replaces the price of a single code.
func (t *Table) SetOverride(ctx context.Context, code string, price int64) error {
	return t.SetOverrideBatch(ctx, []string{code}, []int64{price})
}

// SetOverrideBatch sets codes[i] to prices[i] for every i. Nothing is applied
// when the lengths differ or any price is negative.
func (t *Table) SetOverrideBatch(ctx context.Context, codes []string, prices []int64) error {
	if len(codes) != len(prices) {
		return apperrors.NewValidationError("prices", fmt.Sprintf("expected %d prices, got %d", len(codes), len(prices)))
	}

	for i, code := range codes {
		if normalize(code) == "" {
			return apperrors.NewValidationError("code", "product code is empty")
		}
		if prices[i] < 0 {
			return apperrors.NewValidationError("price", fmt.Sprintf("price for %s must not be negative", code))
		}
	}

	return t.apply(ctx, func(overrides map[string]int64) error {
		for i, code := range codes {
			overrides[normalize(code)] = prices[i]
		}
		return nil
	})
}

// SetGroup sets every code of a named positional group.
func (t *Table) SetGroup(ctx context.Context, group string, prices []int64) error {
	codes, ok := Groups[normalize(group)]
	if !ok {
		return apperrors.NewValidationError("group", fmt.Sprintf("unknown price group %q", group))
	}

	return t.SetOverrideBatch(ctx, codes, prices)
}

// SetWeeklyPassBase writes wp1..wp10 as multiples of base.
func (t *Table) SetWeeklyPassBase(ctx context.Context, base int64) error {
	codes := weeklyPassCodes()
	prices := make([]int64, len(codes))
	for i := range codes {
		prices[i] = int64(i+1) * base
	}

	return t.SetOverrideBatch(ctx, codes, prices)
}

// RemoveOverride drops the override of code so it falls back to its default.
func (t *Table) RemoveOverride(ctx context.Context, code string) error {
	code = normalize(code)

	return t.apply(ctx, func(overrides map[string]int64) error {
		if _, ok := overrides[code]; !ok {
			return apperrors.NewNotFoundError("price override", code)
		}
		delete(overrides, code)
		return nil
	})
}

// apply mutates a copy of the overrides, persists it and only then swaps it in.
func (t *Table) apply(ctx context.Context, fn func(map[string]int64) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := copyPrices(t.overrides)
	if err := fn(next); err != nil {
		return err
	}

	if t.store != nil {
		if _, err := t.store.Update(ctx, func(s *domain.Settings) error {
			s.PriceOverrides = copyPrices(next)
			return nil
		}); err != nil {
			return err
		}
	}

	t.overrides = next
	return nil
}

// Catalog returns the merged price list grouped for display.
func (t *Table) Catalog() []Section {
	resolve := func(codes []string) []Entry {
		entries := make([]Entry, 0, len(codes))
		for _, code := range codes {
			if price, err := t.Resolve(code); err == nil {
				entries = append(entries, Entry{Code: code, Price: price})
			}
		}
		return entries
	}

	sections := []Section{
		{Title: "Weekly Pass", Entries: resolve(weeklyPassCodes())},
		{Title: "Regular Diamonds", Entries: resolve(RegularCodes)},
		{Title: "2X Diamond Pass", Entries: resolve(DoublePassCodes)},
	}

	known := make(map[string]bool)
	for _, code := range append(append(weeklyPassCodes(), RegularCodes...), DoublePassCodes...) {
		known[code] = true
	}

	t.mu.RLock()
	var special []Entry
	for code, price := range t.overrides {
		if !known[code] {
			special = append(special, Entry{Code: code, Price: price})
		}
	}
	t.mu.RUnlock()

	if len(special) > 0 {
		sort.Slice(special, func(i, j int) bool { return special[i].Code < special[j].Code })
		sections = append(sections, Section{Title: "Special Items", Entries: special})
	}

	return sections
}

func copyPrices(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
