package schedule

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidEntry means a template entry has a non-positive range.
	ErrInvalidEntry = errors.New("schedule: entry end must be after start")
	// ErrOverlappingEntries means two active entries overlap on the same weekday.
	ErrOverlappingEntries = errors.New("schedule: active entries overlap")
)

// Entry is one weekly recurring availability window.
type Entry struct {
	Weekday time.Weekday `json:"weekday"`
	Start   Clock        `json:"start"`
	End     Clock        `json:"end"`
	Active  bool         `json:"active"`
}

// Template is a provider's weekly availability in a single fixed timezone.
// It is read-only to the booking flow; the admin surface replaces it
// wholesale. Entries are deactivated, never removed.
type Template struct {
	loc     *time.Location
	entries []Entry
}

// NewTemplate validates and builds a template.
func NewTemplate(loc *time.Location, entries []Entry) (*Template, error) {
	if loc == nil {
		return nil, errors.New("schedule: location required")
	}
	for _, e := range entries {
		if e.End <= e.Start {
			return nil, fmt.Errorf("%w: %s %s-%s", ErrInvalidEntry, e.Weekday, e.Start, e.End)
		}
	}
	// Active entries on the same weekday must not overlap, or slot
	// generation would emit duplicate start times.
	for i, a := range entries {
		if !a.Active {
			continue
		}
		for _, b := range entries[i+1:] {
			if !b.Active || a.Weekday != b.Weekday {
				continue
			}
			if a.Start < b.End && b.Start < a.End {
				return nil, fmt.Errorf("%w: %s %s-%s and %s-%s",
					ErrOverlappingEntries, a.Weekday, a.Start, a.End, b.Start, b.End)
			}
		}
	}
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Template{loc: loc, entries: cp}, nil
}

// DefaultTemplate is the provider's standing schedule: weekday evenings
// 5:30 PM - 10:00 PM, weekends 8:00 AM - 10:00 PM.
func DefaultTemplate(loc *time.Location) *Template {
	entries := make([]Entry, 0, 7)
	for wd := time.Monday; wd <= time.Friday; wd++ {
		entries = append(entries, Entry{Weekday: wd, Start: NewClock(17, 30), End: NewClock(22, 0), Active: true})
	}
	for _, wd := range []time.Weekday{time.Saturday, time.Sunday} {
		entries = append(entries, Entry{Weekday: wd, Start: NewClock(8, 0), End: NewClock(22, 0), Active: true})
	}
	t, err := NewTemplate(loc, entries)
	if err != nil {
		panic("schedule: default template invalid: " + err.Error())
	}
	return t
}

// Location returns the template's fixed timezone.
func (t *Template) Location() *time.Location { return t.loc }

// Entries returns a copy of the template entries.
func (t *Template) Entries() []Entry {
	cp := make([]Entry, len(t.entries))
	copy(cp, t.entries)
	return cp
}

// Deactivate returns a template with every entry matching the weekday and
// start marked inactive. Unknown entries are left untouched.
func (t *Template) Deactivate(weekday time.Weekday, start Clock) *Template {
	entries := t.Entries()
	for i := range entries {
		if entries[i].Weekday == weekday && entries[i].Start == start {
			entries[i].Active = false
		}
	}
	return &Template{loc: t.loc, entries: entries}
}
