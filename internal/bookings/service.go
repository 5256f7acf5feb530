package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/divinetalks/platform/internal/catalog"
	"github.com/divinetalks/platform/internal/identity"
	"github.com/divinetalks/platform/internal/observability/metrics"
	"github.com/divinetalks/platform/internal/schedule"
	"github.com/divinetalks/platform/pkg/logging"
)

// Store is the persistence surface the ledger needs.
type Store interface {
	Insert(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListUpcoming(ctx context.Context, userID uuid.UUID, from time.Time) ([]*Booking, error)
	ListPast(ctx context.Context, userID uuid.UUID, before time.Time, limit int) ([]*Booking, error)
	ListRecent(ctx context.Context, limit int) ([]*Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Ledger owns booking lifecycle state. All creations and transitions go
// through it; payment fields are written by the payment reconciler.
type Ledger struct {
	store   Store
	grid    *schedule.Grid
	catalog *catalog.Catalog
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
	tracer  trace.Tracer
}

// NewLedger constructs the booking ledger.
func NewLedger(store Store, grid *schedule.Grid, cat *catalog.Catalog, logger *logging.Logger, m *metrics.BookingMetrics) *Ledger {
	if store == nil {
		panic("bookings: store required")
	}
	if grid == nil {
		panic("bookings: schedule grid required")
	}
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{
		store:   store,
		grid:    grid,
		catalog: cat,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("divinetalks.internal.bookings"),
	}
}

// CreateParams are the caller-supplied booking fields; duration and price
// are always derived from the catalog.
type CreateParams struct {
	SessionKind     catalog.Kind
	Date            time.Time
	StartTime       schedule.Clock
	SpecialRequests string
}

// Create reserves a slot for the actor. The requested start must be on the
// availability grid and not held by another non-cancelled booking.
func (l *Ledger) Create(ctx context.Context, actor identity.Actor, p CreateParams) (*Booking, error) {
	ctx, span := l.tracer.Start(ctx, "bookings.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.session_kind", string(p.SessionKind)),
		attribute.String("booking.date", schedule.FormatDate(p.Date)),
	)

	st, err := l.catalog.Lookup(p.SessionKind)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSessionKind, p.SessionKind)
	}

	bookable, err := l.grid.Contains(p.Date, p.StartTime)
	if err != nil {
		// Past-date rejection comes from the grid in the provider zone.
		return nil, err
	}
	if !bookable {
		return nil, fmt.Errorf("%w: %s is not a bookable time", ErrSlotUnavailable, p.StartTime)
	}

	b := &Booking{
		ID:              uuid.New(),
		UserID:          actor.UserID,
		SessionKind:     st.Kind,
		Date:            p.Date,
		StartTime:       p.StartTime,
		DurationMinutes: st.DurationMinutes,
		PriceCents:      st.PriceCents,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		SpecialRequests: p.SpecialRequests,
	}
	if err := l.store.Insert(ctx, b); err != nil {
		span.RecordError(err)
		return nil, err
	}

	l.metrics.ObserveBookingCreated(string(st.Kind))
	l.logger.Info("booking created",
		"booking_id", b.ID,
		"user_id", b.UserID,
		"session_kind", b.SessionKind,
		"date", schedule.FormatDate(b.Date),
		"start", b.StartTime.String(),
	)
	return b, nil
}

// Get returns a booking visible to the actor.
func (l *Ledger) Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Booking, error) {
	b, err := l.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(b.UserID) {
		return nil, ErrForbidden
	}
	return b, nil
}

// ListUpcoming returns the actor's paid bookings from today forward,
// ascending by date and start time.
func (l *Ledger) ListUpcoming(ctx context.Context, actor identity.Actor) ([]*Booking, error) {
	return l.store.ListUpcoming(ctx, actor.UserID, l.grid.Today())
}

// ListPast returns the actor's bookings before today, most recent first.
func (l *Ledger) ListPast(ctx context.Context, actor identity.Actor, limit int) ([]*Booking, error) {
	if limit <= 0 {
		limit = 5
	}
	return l.store.ListPast(ctx, actor.UserID, l.grid.Today(), limit)
}

// ListRecent returns the latest bookings platform-wide. Admin only.
func (l *Ledger) ListRecent(ctx context.Context, actor identity.Actor, limit int) ([]*Booking, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	if limit <= 0 {
		limit = 10
	}
	return l.store.ListRecent(ctx, limit)
}

// Cancel moves a booking to cancelled. Allowed from any status except
// completed; cancelling an already-cancelled booking is a no-op. Payment
// fields are left untouched (refunds are handled out of band).
func (l *Ledger) Cancel(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Booking, error) {
	ctx, span := l.tracer.Start(ctx, "bookings.cancel")
	defer span.End()

	b, err := l.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(b.UserID) {
		return nil, ErrForbidden
	}
	if b.Status == StatusCancelled {
		return b, nil
	}
	if !b.Status.CanTransition(StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, StatusCancelled)
	}
	if err := l.store.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		span.RecordError(err)
		return nil, err
	}
	b.Status = StatusCancelled
	l.logger.Info("booking cancelled", "booking_id", id, "actor_id", actor.UserID, "admin", actor.IsAdmin)
	return b, nil
}

// Complete marks a paid booking as delivered. Admin only.
func (l *Ledger) Complete(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Booking, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	b, err := l.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Status.CanTransition(StatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, StatusCompleted)
	}
	if err := l.store.UpdateStatus(ctx, id, StatusCompleted); err != nil {
		return nil, err
	}
	b.Status = StatusCompleted
	l.logger.Info("booking completed", "booking_id", id)
	return b, nil
}

// Delete removes a booking that never started payment. Once an intent
// exists the booking can only be cancelled.
func (l *Ledger) Delete(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	b, err := l.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanAccess(b.UserID) {
		return ErrForbidden
	}
	if b.Status != StatusPending || b.PaymentIntentID != "" {
		return ErrHasPayment
	}
	if err := l.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrHasPayment) {
			return ErrHasPayment
		}
		return err
	}
	l.logger.Info("booking deleted", "booking_id", id, "actor_id", actor.UserID)
	return nil
}
