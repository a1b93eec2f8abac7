package report

import (
	"fmt"
	"time"
)

// Period is the calendar slice a report covers. Analytics windows end at End
// and span WindowDays.
type Period struct {
	Key        string // "" for kinds without period idempotency
	WindowDays int
	End        time.Time
}

// PeriodFor returns the period a report of kind generated at now covers.
//
//	daily    previous UTC day, key "2006-01-02", 1-day window ending at today 00:00 UTC
//	weekly   ISO week of now, key "2006-W01", 7-day window
//	monthly  calendar month of now, key "2006-01", 30-day window
//	others   no key, window ending now
func PeriodFor(kind string, now time.Time, windowDays int) Period {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch kind {
	case Daily:
		return Period{Key: today.AddDate(0, 0, -1).Format(time.DateOnly), WindowDays: 1, End: today}
	case Weekly:
		y, w := now.ISOWeek()
		return Period{Key: fmt.Sprintf("%04d-W%02d", y, w), WindowDays: 7, End: now}
	case Monthly:
		return Period{Key: now.Format("2006-01"), WindowDays: 30, End: now}
	case Competitor:
		return Period{End: now}
	default:
		if windowDays <= 0 {
			windowDays = DefaultCustomWindow
		}
		return Period{WindowDays: windowDays, End: now}
	}
}

// periodOf rebuilds the period of a stored report. Past periods end where
// their calendar slice ends; the current one ends at now.
func periodOf(kind, key string, windowDays int, now time.Time) Period {
	now = now.UTC()
	p := Period{Key: key, WindowDays: windowDays, End: now}
	var end time.Time
	switch kind {
	case Daily:
		if d, err := time.Parse(time.DateOnly, key); err == nil {
			end = d.AddDate(0, 0, 1)
		}
	case Weekly:
		var y, w int
		if _, err := fmt.Sscanf(key, "%d-W%d", &y, &w); err == nil {
			end = isoWeekStart(y, w).AddDate(0, 0, 7)
		}
	case Monthly:
		if m, err := time.Parse("2006-01", key); err == nil {
			end = m.AddDate(0, 1, 0)
		}
	}
	if !end.IsZero() && end.Before(now) {
		p.End = end
	}
	if p.WindowDays <= 0 {
		p.WindowDays = PeriodFor(kind, now, 0).WindowDays
	}
	return p
}

// isoWeekStart returns the Monday 00:00 UTC of ISO week w of year y.
func isoWeekStart(y, w int) time.Time {
	jan4 := time.Date(y, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7 // days since Monday
	return jan4.AddDate(0, 0, -offset+(w-1)*7)
}
