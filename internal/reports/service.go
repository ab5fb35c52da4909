// Package reports summarizes confirmed sales and approved top-ups.
package reports

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
)

type AccountLister interface {
	List(ctx context.Context) ([]*domain.Account, error)
}

type AdminChecker interface {
	RequireAdmin(ctx context.Context, actor string) error
}

// Totals aggregates one bucket or the whole period.
type Totals struct {
	Label        string
	Orders       int
	Sales        int64
	TopUps       int
	TopUpsAmount int64
}

// AverageOrder is Sales / Orders rounded to whole MMK.
func (t Totals) AverageOrder() decimal.Decimal {
	if t.Orders == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(t.Sales).Div(decimal.NewFromInt(int64(t.Orders))).Round(0)
}

type Report struct {
	Period    Period
	Buckets   []Totals
	Total     Totals
	ByProduct map[string]int64
	ByChannel map[string]int64
}

type Service struct {
	accounts AccountLister
	admins   AdminChecker
	loc      *time.Location
	log      *slog.Logger
}

func NewService(accounts AccountLister, admins AdminChecker, loc *time.Location, log *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{accounts: accounts, admins: admins, loc: loc, log: log}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// Build summarizes confirmed orders and approved top-ups resolved within period.
func (s *Service) Build(ctx context.Context, actor string, period Period) (*Report, error) {
	if err := s.admins.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Period:    period,
		Total:     Totals{Label: "Total"},
		ByProduct: make(map[string]int64),
		ByChannel: make(map[string]int64),
	}

	buckets := make(map[string]*Totals)
	bucket := func(t time.Time) *Totals {
		label := period.Label(truncate(period.Granularity, t.In(s.loc)))
		b, ok := buckets[label]
		if !ok {
			b = &Totals{Label: label}
			buckets[label] = b
		}
		return b
	}

	for _, acc := range accounts {
		for _, o := range acc.Orders {
			if o.Status != domain.OrderConfirmed || o.ResolvedAt == nil || !period.Contains(*o.ResolvedAt) {
				continue
			}
			b := bucket(*o.ResolvedAt)
			b.Orders++
			b.Sales += o.Price
			report.Total.Orders++
			report.Total.Sales += o.Price
			report.ByProduct[o.ProductCode] += o.Price
		}

		for _, t := range acc.TopUps {
			if t.Status != domain.TopUpApproved || t.ResolvedAt == nil || !period.Contains(*t.ResolvedAt) {
				continue
			}
			b := bucket(*t.ResolvedAt)
			b.TopUps++
			b.TopUpsAmount += t.Amount
			report.Total.TopUps++
			report.Total.TopUpsAmount += t.Amount
			report.ByChannel[t.Channel] += t.Amount
		}
	}

	for _, b := range buckets {
		report.Buckets = append(report.Buckets, *b)
	}
	sort.Slice(report.Buckets, func(i, j int) bool { return report.Buckets[i].Label < report.Buckets[j].Label })

	s.log.Info("report built",
		slog.String("granularity", string(period.Granularity)),
		slog.Time("from", period.From),
		slog.Time("to", period.To),
		slog.Int("orders", report.Total.Orders),
	)

	return report, nil
}
