// Package timeutil provides UTC calendar-day helpers.
// All progression state is keyed by UTC calendar day ("YYYY-MM-DD") and
// challenge weeks run Monday 00:00 UTC through Sunday 23:59:59 UTC.
package timeutil

import (
	"time"
)

// FormatDate is the day-key layout (YYYY-MM-DD).
const FormatDate = "2006-01-02"

// StartOfDay returns 00:00:00 UTC of t's UTC calendar day.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats t as a UTC day key.
func DateKey(t time.Time) string {
	return t.UTC().Format(FormatDate)
}

// ParseDateKey parses a YYYY-MM-DD key as a UTC midnight.
func ParseDateKey(key string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, key, time.UTC)
}

// IsValidDateKey reports whether key is a well-formed day key.
func IsValidDateKey(key string) bool {
	_, err := ParseDateKey(key)
	return err == nil
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	d := StartOfDay(b).Sub(StartOfDay(a))
	return int(d.Hours() / 24)
}

// DaysBetweenKeys is DaysBetween over day keys.
func DaysBetweenKeys(a, b string) (int, error) {
	ta, err := ParseDateKey(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDateKey(b)
	if err != nil {
		return 0, err
	}
	return DaysBetween(ta, tb), nil
}

// IsConsecutiveDay checks if b is exactly one calendar day after a.
func IsConsecutiveDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 1
}

// StartOfWeek returns Monday 00:00:00 UTC of t's ISO week.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// EndOfWeek returns Sunday 23:59:59 UTC of t's ISO week.
func EndOfWeek(t time.Time) time.Time {
	return StartOfWeek(t).AddDate(0, 0, 7).Add(-time.Second)
}

// IsSameWeek reports whether a and b fall into the same ISO week.
func IsSameWeek(a, b time.Time) bool {
	return StartOfWeek(a).Equal(StartOfWeek(b))
}
