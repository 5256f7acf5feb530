package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/divinetalks/platform/internal/bookings"
	"github.com/divinetalks/platform/internal/catalog"
	"github.com/divinetalks/platform/pkg/logging"
)

// Directory resolves a user id to a deliverable address.
type Directory interface {
	Contact(ctx context.Context, userID uuid.UUID) (email, name string, err error)
}

// Service sends booking lifecycle emails. It satisfies the payment
// reconciler's notifier hook; failures are logged, never propagated, since
// the payment is already applied by the time we get here.
type Service struct {
	email   EmailSender
	users   Directory
	catalog *catalog.Catalog
	loc     *time.Location
	logger  *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, users Directory, cat *catalog.Catalog, loc *time.Location, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if cat == nil {
		cat = catalog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{email: email, users: users, catalog: cat, loc: loc, logger: logger}
}

// BookingPaid emails the customer their session confirmation.
func (s *Service) BookingPaid(ctx context.Context, b *bookings.Booking) {
	if s.email == nil || s.users == nil {
		return
	}
	addr, name, err := s.users.Contact(ctx, b.UserID)
	if err != nil {
		s.logger.Warn("notify: contact lookup failed", "user_id", b.UserID, "error", err)
		return
	}

	display := string(b.SessionKind)
	if st, err := s.catalog.Lookup(b.SessionKind); err == nil {
		display = st.DisplayName
	}
	when := fmt.Sprintf("%s at %s", b.Date.Format("Monday, January 2, 2006"), b.StartTime.Label(s.loc))

	msg := EmailMessage{
		To:      addr,
		ToName:  name,
		Subject: fmt.Sprintf("Your %s session is confirmed", display),
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour payment was received and your %s session is confirmed for %s.\n\n"+
				"The session room opens 15 minutes before your start time.\n\nSee you there!",
			name, display, when),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: confirmation email failed", "booking_id", b.ID, "error", err)
	}
}
