package timewindow

import (
	"errors"
	"time"
)

// ErrInvalidDate indicates a date string that does not parse as YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date")

const layout = "2006-01-02"

// Day truncates t to calendar-day granularity in UTC. All window checks
// compare days, never times of day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsWithinWindow reports whether candidate falls inside [start, end],
// inclusive on both ends.
func IsWithinWindow(candidate, start, end time.Time) bool {
	d := Day(candidate)
	return !d.Before(Day(start)) && !d.After(Day(end))
}

// DaysRemaining returns the signed number of whole days from ref to due.
// Negative when due is already past.
func DaysRemaining(due, ref time.Time) int {
	return int(Day(due).Sub(Day(ref)).Hours() / 24)
}

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return Day(t).Format(layout)
}
