package schedule

import (
	"errors"
	"sort"
	"time"
)

// SlotStep is the fixed granularity of bookable slots.
const SlotStep = 30 * time.Minute

// ErrPastDate is returned when slots are requested for a date that has
// already passed in the provider's timezone.
var ErrPastDate = errors.New("schedule: date is in the past")

// Slot is a derived bookable start time. Slots are query results, not
// entities: the same template and date always yield the same sequence.
type Slot struct {
	Date  time.Time `json:"date"`
	Start Clock     `json:"start"`
	Label string    `json:"label"`
}

// Grid turns a weekly template into concrete slots for a calendar date.
type Grid struct {
	template *Template
	now      func() time.Time
}

// NewGrid creates a grid over the given template.
func NewGrid(t *Template) *Grid {
	return &Grid{template: t, now: time.Now}
}

// WithNow overrides the clock source, for tests.
func (g *Grid) WithNow(now func() time.Time) *Grid {
	g.now = now
	return g
}

// Today returns the current date in the provider's timezone, normalized
// to midnight UTC for comparison with stored booking dates.
func (g *Grid) Today() time.Time {
	n := g.now().In(g.template.loc)
	return civil(n.Year(), n.Month(), n.Day())
}

// Template returns the grid's availability template.
func (g *Grid) Template() *Template { return g.template }

// SlotsFor returns the ordered bookable slots for a date. Slots from all
// active entries matching the weekday are merged, deduplicated, and sorted
// ascending. A slot starting at end-30min is included; one that would start
// at or after the entry end is not.
func (g *Grid) SlotsFor(date time.Time) ([]Slot, error) {
	date = civil(date.Year(), date.Month(), date.Day())
	if date.Before(g.Today()) {
		return nil, ErrPastDate
	}

	stepMinutes := int(SlotStep / time.Minute)
	seen := make(map[Clock]struct{})
	var slots []Slot
	for _, e := range g.template.entries {
		if !e.Active || e.Weekday != date.Weekday() {
			continue
		}
		for start := e.Start; start.Add(stepMinutes) <= e.End; start = start.Add(stepMinutes) {
			if _, dup := seen[start]; dup {
				continue
			}
			seen[start] = struct{}{}
			slots = append(slots, Slot{
				Date:  date,
				Start: start,
				Label: start.Label(g.template.loc),
			})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start < slots[j].Start })
	return slots, nil
}

// Contains reports whether the given start time is a bookable slot on the
// date. Returns ErrPastDate for dates before today in the provider zone.
func (g *Grid) Contains(date time.Time, start Clock) (bool, error) {
	slots, err := g.SlotsFor(date)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s.Start == start {
			return true, nil
		}
	}
	return false, nil
}

// ParseDate parses a "YYYY-MM-DD" calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return civil(t.Year(), t.Month(), t.Day()), nil
}

// FormatDate renders a calendar date as "YYYY-MM-DD".
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func civil(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
