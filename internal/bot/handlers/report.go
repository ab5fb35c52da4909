package handlers

import (
	"fmt"
	"sort"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
	"github.com/Proton-105/mlbb-topup-bot/internal/reports"
)

// Report handles "/report d|m|y [from] [to]".
func (h *Handlers) Report(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	a := args(c)
	if len(a) == 0 {
		return usage("Send /report d|m|y [from] [to], for example /report d 2024-05-01 2024-05-07")
	}

	period, err := reports.ParsePeriod(a[0], a[1:], time.Now(), h.reports.Location())
	if err != nil {
		return err
	}

	report, err := h.reports.Build(Context(c), userID(sender), period)
	if err != nil {
		return err
	}

	return c.Send(renderReport(report))
}

func renderReport(r *reports.Report) string {
	var b strings.Builder

	last := r.Period.To.AddDate(0, 0, -1)
	fmt.Fprintf(&b, "📊 Sales report %s .. %s\n", r.Period.From.Format("2006-01-02"), last.Format("2006-01-02"))

	for _, bucket := range r.Buckets {
		fmt.Fprintf(&b, "\n%s\nOrders: %d, sales %s\nTop-ups: %d, %s\n",
			bucket.Label, bucket.Orders, notify.FormatMMK(bucket.Sales), bucket.TopUps, notify.FormatMMK(bucket.TopUpsAmount))
	}

	t := r.Total
	fmt.Fprintf(&b, "\nTotal\nOrders: %d, sales %s (avg %s MMK)\nTop-ups: %d, %s\n",
		t.Orders, notify.FormatMMK(t.Sales), t.AverageOrder().String(), t.TopUps, notify.FormatMMK(t.TopUpsAmount))

	if len(r.ByProduct) > 0 {
		b.WriteString("\nBy product\n")
		for _, k := range sortedKeys(r.ByProduct) {
			fmt.Fprintf(&b, "%s: %s\n", k, notify.FormatMMK(r.ByProduct[k]))
		}
	}
	if len(r.ByChannel) > 0 {
		b.WriteString("\nBy channel\n")
		for _, k := range sortedKeys(r.ByChannel) {
			fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(k), notify.FormatMMK(r.ByChannel[k]))
		}
	}

	return b.String()
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
