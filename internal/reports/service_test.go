package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
)

type staticAccounts []*domain.Account

func (s staticAccounts) List(context.Context) ([]*domain.Account, error) {
	return s, nil
}

type allowAdmin string

func (a allowAdmin) RequireAdmin(_ context.Context, actor string) error {
	if actor != string(a) {
		return apperrors.NewAdminOnlyError()
	}
	return nil
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func fixtureAccounts() staticAccounts {
	return staticAccounts{
		{
			UserID: "42",
			Orders: []domain.Order{
				{ID: "o1", ProductCode: "86", Price: 5100, Status: domain.OrderConfirmed, ResolvedAt: at("2024-05-01T10:00:00Z")},
				{ID: "o2", ProductCode: "172", Price: 10200, Status: domain.OrderConfirmed, ResolvedAt: at("2024-05-02T10:00:00Z")},
				{ID: "o3", ProductCode: "86", Price: 5100, Status: domain.OrderCancelled, ResolvedAt: at("2024-05-02T11:00:00Z")},
				{ID: "o4", ProductCode: "86", Price: 5100, Status: domain.OrderPending},
			},
			TopUps: []domain.TopUp{
				{ID: "t1", Amount: 50000, Channel: "kpay", Status: domain.TopUpApproved, ResolvedAt: at("2024-05-01T09:00:00Z")},
				{ID: "t2", Amount: 9000, Channel: "wave", Status: domain.TopUpRejected, ResolvedAt: at("2024-05-01T09:30:00Z")},
			},
		},
		{
			UserID: "43",
			Orders: []domain.Order{
				{ID: "o5", ProductCode: "11", Price: 950, Status: domain.OrderConfirmed, ResolvedAt: at("2024-06-01T10:00:00Z")},
			},
		},
	}
}

func TestParsePeriod(t *testing.T) {
	now := time.Date(2024, 5, 17, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		kind string
		args []string
		from string
		to   string
	}{
		{"today", "d", nil, "2024-05-17", "2024-05-18"},
		{"single day", "d", []string{"2024-05-01"}, "2024-05-01", "2024-05-02"},
		{"day range", "d", []string{"2024-05-01", "2024-05-03"}, "2024-05-01", "2024-05-04"},
		{"this month", "m", nil, "2024-05-01", "2024-06-01"},
		{"month range", "m", []string{"2024-01", "2024-03"}, "2024-01-01", "2024-04-01"},
		{"this year", "y", nil, "2024-01-01", "2025-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePeriod(tt.kind, tt.args, now, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.from, p.From.Format("2006-01-02"))
			assert.Equal(t, tt.to, p.To.Format("2006-01-02"))
		})
	}

	_, err := ParsePeriod("w", nil, now, nil)
	assert.True(t, errors.Is(err, &apperrors.AppError{Kind: apperrors.KindValidation, Field: "period"}))

	_, err = ParsePeriod("d", []string{"2024-05-03", "2024-05-01"}, now, nil)
	assert.True(t, errors.Is(err, &apperrors.AppError{Kind: apperrors.KindValidation, Field: "to"}))

	_, err = ParsePeriod("m", []string{"May"}, now, nil)
	assert.True(t, errors.Is(err, &apperrors.AppError{Kind: apperrors.KindValidation, Field: "from"}))
}

func TestBuildDailyReport(t *testing.T) {
	svc := NewService(fixtureAccounts(), allowAdmin("1"), time.UTC, nil)
	period, err := ParsePeriod("d", []string{"2024-05-01", "2024-05-31"}, time.Now(), time.UTC)
	require.NoError(t, err)

	report, err := svc.Build(context.Background(), "1", period)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total.Orders)
	assert.Equal(t, int64(15300), report.Total.Sales)
	assert.Equal(t, 1, report.Total.TopUps)
	assert.Equal(t, int64(50000), report.Total.TopUpsAmount)
	assert.Equal(t, "7650", report.Total.AverageOrder().String())

	require.Len(t, report.Buckets, 2)
	assert.Equal(t, "2024-05-01", report.Buckets[0].Label)
	assert.Equal(t, int64(5100), report.Buckets[0].Sales)
	assert.Equal(t, int64(50000), report.Buckets[0].TopUpsAmount)
	assert.Equal(t, "2024-05-02", report.Buckets[1].Label)

	assert.Equal(t, map[string]int64{"86": 5100, "172": 10200}, report.ByProduct)
	assert.Equal(t, map[string]int64{"kpay": 50000}, report.ByChannel)
}

func TestBuildYearlyReportAndGate(t *testing.T) {
	svc := NewService(fixtureAccounts(), allowAdmin("1"), time.UTC, nil)
	period, err := ParsePeriod("y", []string{"2024"}, time.Now(), time.UTC)
	require.NoError(t, err)

	report, err := svc.Build(context.Background(), "1", period)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total.Orders)
	require.Len(t, report.Buckets, 1)
	assert.Equal(t, "2024", report.Buckets[0].Label)

	_, err = svc.Build(context.Background(), "42", period)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	assert.True(t, Totals{}.AverageOrder().IsZero())
}
