package reports

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
)

// Granularity is the bucket size of a report.
type Granularity string

const (
	Daily   Granularity = "d"
	Monthly Granularity = "m"
	Yearly  Granularity = "y"
)

var layouts = map[Granularity]string{
	Daily:   "2006-01-02",
	Monthly: "2006-01",
	Yearly:  "2006",
}

// Period is the half-open interval [From, To) split into buckets.
type Period struct {
	Granularity Granularity
	From        time.Time
	To          time.Time
}

// ParsePeriod reads "/report d|m|y [from] [to]" arguments. Without bounds the
// current day, month or year is used; with one bound only that bucket.
func ParsePeriod(kind string, args []string, now time.Time, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}

	g := Granularity(strings.ToLower(strings.TrimSpace(kind)))
	layout, ok := layouts[g]
	if !ok {
		return Period{}, apperrors.NewValidationError("period", fmt.Sprintf("unknown report type %q, use d, m or y", kind))
	}
	if len(args) > 2 {
		return Period{}, apperrors.NewValidationError("period", "at most two dates are accepted")
	}

	var from, last time.Time
	switch len(args) {
	case 0:
		from = truncate(g, now.In(loc))
		last = from
	default:
		var err error
		from, err = time.ParseInLocation(layout, args[0], loc)
		if err != nil {
			return Period{}, apperrors.NewValidationError("from", fmt.Sprintf("expected date as %s", layout))
		}
		last = from
		if len(args) == 2 {
			last, err = time.ParseInLocation(layout, args[1], loc)
			if err != nil {
				return Period{}, apperrors.NewValidationError("to", fmt.Sprintf("expected date as %s", layout))
			}
		}
	}

	if last.Before(from) {
		return Period{}, apperrors.NewValidationError("to", "end date is before start date")
	}

	return Period{Granularity: g, From: from, To: step(g, last)}, nil
}

func truncate(g Granularity, t time.Time) time.Time {
	switch g {
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case Yearly:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

func step(g Granularity, t time.Time) time.Time {
	switch g {
	case Monthly:
		return t.AddDate(0, 1, 0)
	case Yearly:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// Label formats the bucket starting at t.
func (p Period) Label(t time.Time) string {
	return t.Format(layouts[p.Granularity])
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.From) && t.Before(p.To)
}
