package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a clock time without a date, stored as minutes from midnight.
// It replaces repeated "HH:MM" string parsing at call sites.
type TimeOfDay struct {
	minutes int
}

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: expected HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q: %w", value, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q: %w", value, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", value)
	}
	return TimeOfDay{minutes: hour*60 + minute}, nil
}

// MustParseTimeOfDay parses an "HH:MM" string and panics on failure.
// Intended for compile-time constants such as configuration defaults.
func MustParseTimeOfDay(value string) TimeOfDay {
	tod, err := ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return tod
}

// HourOfDay returns a TimeOfDay at the top of the given hour.
func HourOfDay(hour int) TimeOfDay {
	return TimeOfDay{minutes: hour * 60}
}

// Hour returns the hour component, 0-23.
func (t TimeOfDay) Hour() int { return t.minutes / 60 }

// Minute returns the minute component, 0-59.
func (t TimeOfDay) Minute() int { return t.minutes % 60 }

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On anchors the clock time to the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}

// AddMinutes returns the time shifted forward by n minutes. The result is
// not wrapped at midnight; callers anchoring to a date get the spillover.
func (t TimeOfDay) AddMinutes(n int) TimeOfDay {
	return TimeOfDay{minutes: t.minutes + n}
}

// Compare orders two clock times: -1 if t is earlier, 0 if equal, 1 if later.
func (t TimeOfDay) Compare(other TimeOfDay) int {
	switch {
	case t.minutes < other.minutes:
		return -1
	case t.minutes > other.minutes:
		return 1
	default:
		return 0
	}
}

// MarshalJSON encodes the time as an "HH:MM" string.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

// UnmarshalJSON decodes an "HH:MM" string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	value, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("time of day must be a JSON string: %w", err)
	}
	parsed, err := ParseTimeOfDay(value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
