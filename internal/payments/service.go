package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/divinetalks/platform/internal/bookings"
	"github.com/divinetalks/platform/internal/identity"
	"github.com/divinetalks/platform/internal/observability/metrics"
	"github.com/divinetalks/platform/pkg/logging"
)

var reconcilerTracer = otel.Tracer("divinetalks.internal.payments")

var (
	// ErrAlreadyPaid means the booking's payment has already succeeded.
	ErrAlreadyPaid = errors.New("payments: booking already paid")
	// ErrBookingCancelled means a cancelled booking cannot be paid for.
	ErrBookingCancelled = errors.New("payments: booking is cancelled")
	// ErrIntentMismatch means the confirmed intent does not belong to the booking.
	ErrIntentMismatch = errors.New("payments: intent does not match booking")
	// ErrNotSucceeded means the processor does not report the charge as captured.
	ErrNotSucceeded = errors.New("payments: intent has not succeeded")
	// ErrNoIntent means no payment intent has been opened for the booking.
	ErrNoIntent = errors.New("payments: no payment intent for booking")
)

// bookingStore is the slice of the bookings repository the reconciler uses.
type bookingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*bookings.Booking, error)
	SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error
}

// confirmer applies verified payment outcomes.
type confirmer interface {
	ConfirmSuccess(ctx context.Context, bookingID uuid.UUID, intentID string, amountCents int64, source string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, bookingID uuid.UUID, intentID string, amountCents int64, source string) error
}

// Notifier is told about bookings that became paid. Delivery failures are
// the notifier's problem; the reconciler never blocks on it.
type Notifier interface {
	BookingPaid(ctx context.Context, b *bookings.Booking)
}

// CheckoutSession is what the frontend needs to collect payment.
type CheckoutSession struct {
	BookingID    uuid.UUID `json:"booking_id"`
	IntentID     string    `json:"intent_id"`
	ClientSecret string    `json:"client_secret"`
	AmountCents  int64     `json:"amount_cents"`
	Currency     string    `json:"currency"`
}

// Reconciler owns the payment side of a booking: opening intents with the
// processor and applying confirmed outcomes from either the returning client
// or the processor's webhook. Both paths converge on the same row-locked
// apply, so a success is recorded exactly once no matter who reports first.
type Reconciler struct {
	store    bookingStore
	repo     confirmer
	intents  IntentClient
	notifier Notifier
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	now      func() time.Time
}

// NewReconciler constructs the payment reconciler.
func NewReconciler(store bookingStore, repo confirmer, intents IntentClient, logger *logging.Logger, m *metrics.BookingMetrics) *Reconciler {
	if store == nil {
		panic("payments: booking store required")
	}
	if repo == nil {
		panic("payments: repository required")
	}
	if intents == nil {
		panic("payments: intent client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		store:   store,
		repo:    repo,
		intents: intents,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// WithNotifier sets the paid-booking notifier.
func (s *Reconciler) WithNotifier(n Notifier) *Reconciler {
	s.notifier = n
	return s
}

// WithNow overrides the clock source, for tests.
func (s *Reconciler) WithNow(now func() time.Time) *Reconciler {
	s.now = now
	return s
}

// BeginPayment opens (or reuses) a processor intent for the booking. An
// unresolved intent from an earlier attempt is handed back rather than
// replaced, so abandoning the payment form does not orphan intents.
func (s *Reconciler) BeginPayment(ctx context.Context, actor identity.Actor, bookingID uuid.UUID) (*CheckoutSession, error) {
	ctx, span := reconcilerTracer.Start(ctx, "payments.begin")
	defer span.End()
	span.SetAttributes(attribute.String("divinetalks.booking_id", bookingID.String()))

	b, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(b.UserID) {
		return nil, bookings.ErrForbidden
	}
	if b.Status == bookings.StatusCancelled {
		return nil, ErrBookingCancelled
	}
	if b.PaymentStatus == bookings.PaymentSucceeded {
		return nil, ErrAlreadyPaid
	}

	if b.PaymentIntentID != "" {
		session, err := s.reuseIntent(ctx, b)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
	}

	intent, err := s.intents.CreateIntent(ctx, b.PriceCents, "usd",
		fmt.Sprintf("%s session on %s", b.SessionKind, b.Date.Format("2006-01-02")),
		map[string]string{
			"booking_id":   b.ID.String(),
			"user_id":      b.UserID.String(),
			"session_kind": string(b.SessionKind),
		})
	if err != nil {
		return nil, err
	}
	if err := s.store.SetPaymentIntent(ctx, b.ID, intent.ID); err != nil {
		return nil, err
	}

	s.logger.Info("payment intent opened",
		"booking_id", b.ID, "intent_id", intent.ID, "amount_cents", b.PriceCents)
	return &CheckoutSession{
		BookingID:    b.ID,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  b.PriceCents,
		Currency:     "usd",
	}, nil
}

// reuseIntent inspects the booking's existing intent. It returns a session
// to hand back, nil to open a fresh intent, or an error to stop.
func (s *Reconciler) reuseIntent(ctx context.Context, b *bookings.Booking) (*CheckoutSession, error) {
	intent, err := s.intents.GetIntent(ctx, b.PaymentIntentID)
	if err != nil {
		if errors.Is(err, ErrProcessorUnavailable) {
			return nil, err
		}
		// Intent no longer retrievable; open a fresh one.
		s.logger.Warn("existing intent lookup failed, opening new intent",
			"booking_id", b.ID, "intent_id", b.PaymentIntentID, "error", err)
		return nil, nil
	}
	if intent.Succeeded() {
		// The charge went through but we never heard about it. Reconcile
		// now instead of charging twice.
		if _, err := s.apply(ctx, b.ID, intent, "client"); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyPaid
	}
	if intent.Reusable() {
		return &CheckoutSession{
			BookingID:    b.ID,
			IntentID:     intent.ID,
			ClientSecret: intent.ClientSecret,
			AmountCents:  b.PriceCents,
			Currency:     "usd",
		}, nil
	}
	if intent.Status == "canceled" || intent.Status == "payment_failed" {
		if err := s.repo.MarkFailed(ctx, b.ID, intent.ID, intent.AmountCents, "client"); err != nil {
			s.logger.Warn("mark failed", "booking_id", b.ID, "error", err)
		}
	}
	return nil, nil
}

// ConfirmByClient handles the browser's "payment went through" report. The
// report itself proves nothing: the intent is re-read from the processor
// and applied only if the processor agrees it succeeded.
func (s *Reconciler) ConfirmByClient(ctx context.Context, actor identity.Actor, bookingID uuid.UUID, intentID string) (applied bool, err error) {
	ctx, span := reconcilerTracer.Start(ctx, "payments.confirm_client")
	defer span.End()
	span.SetAttributes(attribute.String("divinetalks.booking_id", bookingID.String()))

	b, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if !actor.CanAccess(b.UserID) {
		return false, bookings.ErrForbidden
	}
	if b.Status == bookings.StatusCancelled {
		return false, ErrBookingCancelled
	}

	if intentID == "" {
		intentID = b.PaymentIntentID
	}
	if intentID == "" {
		return false, ErrNoIntent
	}
	if b.PaymentIntentID != "" && intentID != b.PaymentIntentID {
		s.metrics.ObserveConfirmation("client", "rejected")
		return false, ErrIntentMismatch
	}

	intent, err := s.intents.GetIntent(ctx, intentID)
	if err != nil {
		return false, err
	}
	if meta := intent.Metadata["booking_id"]; meta != "" && meta != bookingID.String() {
		s.metrics.ObserveConfirmation("client", "rejected")
		return false, ErrIntentMismatch
	}
	if !intent.Succeeded() {
		s.metrics.ObserveConfirmation("client", "rejected")
		return false, fmt.Errorf("%w: processor status %q", ErrNotSucceeded, intent.Status)
	}
	if intent.AmountCents != b.PriceCents {
		s.metrics.ObserveConfirmation("client", "rejected")
		return false, fmt.Errorf("%w: intent amount %d, booking price %d",
			ErrIntentMismatch, intent.AmountCents, b.PriceCents)
	}

	return s.apply(ctx, bookingID, intent, "client")
}

// ConfirmByWebhook applies a processor-delivered success event. The webhook
// payload is already signature-verified, so the intent inside it is trusted.
func (s *Reconciler) ConfirmByWebhook(ctx context.Context, bookingID uuid.UUID, intent *Intent) (applied bool, err error) {
	ctx, span := reconcilerTracer.Start(ctx, "payments.confirm_webhook")
	defer span.End()
	span.SetAttributes(attribute.String("divinetalks.booking_id", bookingID.String()))

	return s.apply(ctx, bookingID, intent, "webhook")
}

// FailByWebhook records a processor-delivered failure event.
func (s *Reconciler) FailByWebhook(ctx context.Context, bookingID uuid.UUID, intent *Intent) error {
	return s.repo.MarkFailed(ctx, bookingID, intent.ID, intent.AmountCents, "webhook")
}

func (s *Reconciler) apply(ctx context.Context, bookingID uuid.UUID, intent *Intent, source string) (bool, error) {
	applied, err := s.repo.ConfirmSuccess(ctx, bookingID, intent.ID, intent.AmountCents, source, s.now().UTC())
	if err != nil {
		s.metrics.ObserveConfirmation(source, "rejected")
		return false, err
	}
	if !applied {
		s.metrics.ObserveConfirmation(source, "noop")
		s.logger.Info("payment already applied",
			"booking_id", bookingID, "intent_id", intent.ID, "source", source)
		return false, nil
	}
	s.metrics.ObserveConfirmation(source, "applied")
	s.logger.Info("payment confirmed",
		"booking_id", bookingID, "intent_id", intent.ID,
		"amount_cents", intent.AmountCents, "source", source)

	if s.notifier != nil {
		if b, err := s.store.GetByID(ctx, bookingID); err == nil {
			s.notifier.BookingPaid(ctx, b)
		} else {
			s.logger.Warn("paid booking reload for notification failed",
				"booking_id", bookingID, "error", err)
		}
	}
	return true, nil
}
