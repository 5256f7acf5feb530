package bookings

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/divinetalks/platform/internal/catalog"
	"github.com/divinetalks/platform/internal/schedule"
)

// Status is the booking lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus summarizes the payment side of a booking.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// statusTransitions is the closed set of legal lifecycle moves.
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

var (
	// ErrNotFound means the booking does not exist.
	ErrNotFound = errors.New("bookings: not found")
	// ErrSlotUnavailable means the requested slot is held by another
	// non-cancelled booking or is not on the availability grid.
	ErrSlotUnavailable = errors.New("bookings: slot unavailable")
	// ErrForbidden means the actor does not own the booking and is not admin.
	ErrForbidden = errors.New("bookings: forbidden")
	// ErrInvalidTransition means the requested lifecycle move is not legal.
	ErrInvalidTransition = errors.New("bookings: invalid status transition")
	// ErrUnknownSessionKind means the session kind is not in the catalog.
	ErrUnknownSessionKind = errors.New("bookings: unknown session kind")
	// ErrHasPayment means a delete was attempted after payment started.
	ErrHasPayment = errors.New("bookings: payment already attempted")
)

// Booking is a reserved session slot and its payment summary. Once payment
// has been attempted a booking is never physically deleted, only cancelled.
type Booking struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"user_id"`
	SessionKind     catalog.Kind   `json:"session_kind"`
	Date            time.Time      `json:"date"`
	StartTime       schedule.Clock `json:"start_time"`
	DurationMinutes int            `json:"duration_minutes"`
	PriceCents      int64          `json:"price_cents"`
	Status          Status         `json:"status"`
	PaymentStatus   PaymentStatus  `json:"payment_status"`
	PaymentIntentID string         `json:"payment_intent_id,omitempty"`
	PaidAt          *time.Time     `json:"paid_at,omitempty"`
	SpecialRequests string         `json:"special_requests,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ScheduledStart anchors the booking's date and start time in the given zone.
func (b *Booking) ScheduledStart(loc *time.Location) time.Time {
	return b.StartTime.At(b.Date, loc)
}

// Duration returns the session length.
func (b *Booking) Duration() time.Duration {
	return time.Duration(b.DurationMinutes) * time.Minute
}
