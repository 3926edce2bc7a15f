package comfort

import (
	"errors"
	"strings"
	"time"
)

const DayLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// Day truncates t to its calendar day in loc and returns midnight UTC of that day.
// The result is the storage key for per-day records, so the wall-clock time a
// caller supplies never affects matching.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay accepts a bare date (2006-01-02, read in loc) or an RFC3339 timestamp.
func ParseDay(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}
	if loc == nil {
		loc = time.UTC
	}

	if t, err := time.ParseInLocation(DayLayout, raw, loc); err == nil {
		return Day(t, loc), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return Day(t, loc), nil
	}
	return time.Time{}, ErrInvalidDate
}
