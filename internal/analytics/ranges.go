package analytics

import (
	"fmt"
	"strings"
	"time"

	"kalyekart-order-service/internal/model"
)

type Preset string

const (
	PresetDaily   Preset = "daily"
	PresetWeekly  Preset = "weekly"
	PresetYearly  Preset = "yearly"
	PresetOverall Preset = "overall"
	PresetCustom  Preset = "custom"

	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"

	maxCustomDays = 366
)

type granularity int

const (
	byDay granularity = iota
	byWeek
	byMonth
)

// Range selects the window and bucket size of the sales series.
// From and To are only used by the custom preset and are inclusive dates.
type Range struct {
	Preset Preset
	From   time.Time
	To     time.Time
}

// ParseRange reads the range query. Explicit from/to dates take precedence
// over the preset; with neither the range defaults to daily.
func ParseRange(preset, from, to string, loc *time.Location) (Range, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from != "" || to != "" {
		if from == "" || to == "" {
			return Range{}, fmt.Errorf("%w: from and to must be given together", model.ErrValidation)
		}
		f, err := time.ParseInLocation(dateLayout, from, loc)
		if err != nil {
			return Range{}, fmt.Errorf("%w: invalid from date %q", model.ErrValidation, from)
		}
		t, err := time.ParseInLocation(dateLayout, to, loc)
		if err != nil {
			return Range{}, fmt.Errorf("%w: invalid to date %q", model.ErrValidation, to)
		}
		if t.Before(f) {
			return Range{}, fmt.Errorf("%w: from must not be after to", model.ErrValidation)
		}
		if days := int(t.Sub(f).Hours()/24) + 1; days > maxCustomDays {
			return Range{}, fmt.Errorf("%w: range spans %d days, at most %d allowed", model.ErrValidation, days, maxCustomDays)
		}
		return Range{Preset: PresetCustom, From: f, To: t}, nil
	}

	switch p := Preset(strings.ToLower(strings.TrimSpace(preset))); p {
	case "":
		return Range{Preset: PresetDaily}, nil
	case PresetDaily, PresetWeekly, PresetYearly, PresetOverall:
		return Range{Preset: p}, nil
	default:
		return Range{}, fmt.Errorf("%w: unknown range %q", model.ErrValidation, preset)
	}
}

// window is the half-open interval [start, end) split into buckets.
type window struct {
	start, end time.Time
	gran       granularity
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the Monday of t's ISO week.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func (g granularity) truncate(t time.Time) time.Time {
	switch g {
	case byWeek:
		return startOfWeek(t)
	case byMonth:
		return startOfMonth(t)
	default:
		return startOfDay(t)
	}
}

func (g granularity) next(t time.Time) time.Time {
	switch g {
	case byWeek:
		return t.AddDate(0, 0, 7)
	case byMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func (g granularity) label(t time.Time) string {
	if g == byMonth {
		return t.Format(monthLayout)
	}
	return t.Format(dateLayout)
}

// windowFor resolves every preset except overall, whose start depends on data.
func windowFor(r Range, now time.Time) window {
	switch r.Preset {
	case PresetWeekly:
		week := startOfWeek(now)
		return window{start: week.AddDate(0, 0, -7*11), end: week.AddDate(0, 0, 7), gran: byWeek}
	case PresetYearly, PresetOverall:
		month := startOfMonth(now)
		return window{start: month.AddDate(0, -11, 0), end: month.AddDate(0, 1, 0), gran: byMonth}
	case PresetCustom:
		from := startOfDay(r.From.In(now.Location()))
		to := startOfDay(r.To.In(now.Location()))
		return window{start: from, end: to.AddDate(0, 0, 1), gran: byDay}
	default:
		today := startOfDay(now)
		return window{start: today.AddDate(0, 0, -6), end: today.AddDate(0, 0, 1), gran: byDay}
	}
}
