package shared

import (
	"fmt"
	"time"
)

// DateOnly is the calendar-date layout accepted by report filters.
const DateOnly = "2006-01-02"

// ParseDate accepts an RFC3339 timestamp or a bare calendar date.
// dayEnd controls how a bare date expands: the first instant of the day
// or the last, so date-only windows include the whole end day.
func ParseDate(value string, dayEnd bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD or RFC3339: %w", value, ErrValidation)
	}
	if dayEnd {
		return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return t, nil
}

// MonthWindow returns the inclusive bounds of a calendar month given
// "YYYY-MM".
func MonthWindow(period string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("period %q must be YYYY-MM: %w", period, ErrValidation)
	}
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end, nil
}
