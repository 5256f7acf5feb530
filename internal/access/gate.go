package access

import (
	"time"

	"github.com/divinetalks/platform/internal/bookings"
)

// Grace is how far outside the scheduled block a session stays reachable:
// the room opens this long before the start and closes this long after the
// scheduled end.
const Grace = 15 * time.Minute

// Decision is the gate's verdict on a join attempt.
type Decision string

const (
	DecisionOpen     Decision = "open"
	DecisionUnpaid   Decision = "unpaid"
	DecisionTooEarly Decision = "too_early"
	DecisionTooLate  Decision = "too_late"
	DecisionBlocked  Decision = "blocked"
)

// Gate decides whether a booked session can be joined right now. Payment is
// checked before timing, so an unpaid booking reports unpaid even inside
// its window.
type Gate struct {
	loc *time.Location
	now func() time.Time
}

// NewGate creates a gate that evaluates windows in the provider's timezone.
func NewGate(loc *time.Location) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{loc: loc, now: time.Now}
}

// WithNow overrides the clock source, for tests.
func (g *Gate) WithNow(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Window is the interval during which a booking's session is joinable.
type Window struct {
	OpensAt  time.Time `json:"opens_at"`
	ClosesAt time.Time `json:"closes_at"`
}

// WindowFor computes the join window for a booking.
func (g *Gate) WindowFor(b *bookings.Booking) Window {
	start := b.ScheduledStart(g.loc)
	return Window{
		OpensAt:  start.Add(-Grace),
		ClosesAt: start.Add(b.Duration() + Grace),
	}
}

// Check evaluates a join attempt against payment state and the time window.
func (g *Gate) Check(b *bookings.Booking) (Decision, Window) {
	w := g.WindowFor(b)
	if b.Status == bookings.StatusCancelled {
		return DecisionBlocked, w
	}
	if b.PaymentStatus != bookings.PaymentSucceeded {
		return DecisionUnpaid, w
	}
	now := g.now()
	switch {
	case now.Before(w.OpensAt):
		return DecisionTooEarly, w
	case now.After(w.ClosesAt):
		return DecisionTooLate, w
	}
	return DecisionOpen, w
}
