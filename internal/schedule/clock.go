package schedule

import (
	"fmt"
	"time"
)

// Clock is a time of day expressed as minutes since midnight.
type Clock int

// NewClock builds a Clock from an hour and minute.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses "HH:MM" in 24-hour form.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("schedule: invalid clock %q: %w", s, err)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

// Hour returns the hour component.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c Clock) Minute() int { return int(c) % 60 }

// Add returns the clock advanced by the given number of minutes.
func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

// String renders the clock as "HH:MM" in 24-hour form.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Label renders the clock as a 12-hour string with the zone abbreviation,
// e.g. "05:30 PM CST".
func (c Clock) Label(loc *time.Location) string {
	// A January anchor keeps the abbreviation in standard time year-round,
	// matching the provider's published schedule ("CST", not "CDT").
	t := time.Date(2000, time.January, 1, c.Hour(), c.Minute(), 0, 0, loc)
	return t.Format("03:04 PM MST")
}

// At anchors the clock to a calendar date in the given zone.
func (c Clock) At(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), 0, 0, loc)
}
