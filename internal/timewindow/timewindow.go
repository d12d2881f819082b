// Package timewindow converts a UTC instant and a whole-hour UTC offset into
// local-day boundaries expressed in UTC.
package timewindow

import "time"

// Window is a half-open [Start, End) interval in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func offsetDuration(offsetHours int) time.Duration {
	return time.Duration(offsetHours) * time.Hour
}

// LocalNow shifts nowUTC into the local frame. The result still carries the
// UTC location; only its wall clock is local.
func LocalNow(nowUTC time.Time, offsetHours int) time.Time {
	return nowUTC.UTC().Add(offsetDuration(offsetHours))
}

// LocalDate is the local calendar date formatted as YYYY-MM-DD.
func LocalDate(nowUTC time.Time, offsetHours int) string {
	return LocalNow(nowUTC, offsetHours).Format(time.DateOnly)
}

// LocalDayStart is local midnight of nowUTC's local day, expressed in UTC.
func LocalDayStart(nowUTC time.Time, offsetHours int) time.Time {
	local := LocalNow(nowUTC, offsetHours)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Add(-offsetDuration(offsetHours))
}

func Today(nowUTC time.Time, offsetHours int) Window {
	start := LocalDayStart(nowUTC, offsetHours)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

func Yesterday(nowUTC time.Time, offsetHours int) Window {
	start := LocalDayStart(nowUTC, offsetHours)
	return Window{Start: start.AddDate(0, 0, -1), End: start}
}

func Tomorrow(nowUTC time.Time, offsetHours int) Window {
	start := LocalDayStart(nowUTC, offsetHours).AddDate(0, 0, 1)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// Last7Days is a rolling window ending at nowUTC, not aligned to local days.
func Last7Days(nowUTC time.Time) Window {
	now := nowUTC.UTC()
	return Window{Start: now.Add(-7 * 24 * time.Hour), End: now}
}
