package library

import (
	"fmt"
	"time"
)

// DayLayout is the calendar-day format used by configuration and request fields.
const DayLayout = "2006-01-02"

// Clock supplies the current instant for due dates, overdue checks and
// reservation timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant. Tests and the --today flag use
// it to make overdue calculations deterministic.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At.UTC() }

// ParseDay parses a YYYY-MM-DD string as midnight UTC.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}
