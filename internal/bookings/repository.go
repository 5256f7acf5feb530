package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/divinetalks/platform/internal/catalog"
	"github.com/divinetalks/platform/internal/schedule"
)

// slotUniqueIndex is the partial unique index enforcing slot exclusivity:
// (booking_date, start_minutes) WHERE status <> 'cancelled'.
const slotUniqueIndex = "bookings_slot_key"

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists bookings in the relational database.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for tests.
func NewRepositoryWithDB(db DB) *Repository {
	return &Repository{db: db}
}

const bookingColumns = `id, user_id, session_kind, booking_date, start_minutes,
	duration_minutes, price_cents, status, payment_status,
	payment_intent_id, paid_at, special_requests, created_at`

// Insert persists a new booking. A unique violation on the slot index is
// surfaced as ErrSlotUnavailable; the database check is what serializes two
// concurrent creations for the same slot.
func (r *Repository) Insert(ctx context.Context, b *Booking) error {
	query := `
		INSERT INTO bookings (id, user_id, session_kind, booking_date, start_minutes,
			duration_minutes, price_cents, status, payment_status, special_requests)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		b.ID,
		b.UserID,
		string(b.SessionKind),
		b.Date,
		int16(b.StartTime),
		b.DurationMinutes,
		b.PriceCents,
		string(b.Status),
		string(b.PaymentStatus),
		b.SpecialRequests,
	).Scan(&b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == slotUniqueIndex {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("bookings: insert failed: %w", err)
	}
	return nil
}

// GetByID fetches one booking.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("bookings: select failed: %w", err)
	}
	return b, nil
}

// ListUpcoming returns a user's paid bookings on or after the given date,
// ascending by date and start time.
func (r *Repository) ListUpcoming(ctx context.Context, userID uuid.UUID, from time.Time) ([]*Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1 AND payment_status = 'succeeded' AND booking_date >= $2
		ORDER BY booking_date ASC, start_minutes ASC
	`
	rows, err := r.db.Query(ctx, query, userID, from)
	if err != nil {
		return nil, fmt.Errorf("bookings: list upcoming: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListPast returns a user's bookings before the given date, most recent
// first, capped at limit.
func (r *Repository) ListPast(ctx context.Context, userID uuid.UUID, before time.Time, limit int) ([]*Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1 AND booking_date < $2
		ORDER BY booking_date DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, userID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("bookings: list past: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListRecent returns the most recently created bookings across all users.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("bookings: list recent: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// UpdateStatus moves a booking to the given lifecycle status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) error {
	ct, err := r.db.Exec(ctx, `UPDATE bookings SET status = $2 WHERE id = $1`, id, string(to))
	if err != nil {
		return fmt.Errorf("bookings: update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPaymentIntent records the processor intent opened for a booking.
func (r *Repository) SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE bookings SET payment_intent_id = $2 WHERE id = $1`, id, intentID)
	if err != nil {
		return fmt.Errorf("bookings: set payment intent: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a booking that is still pending with no payment intent.
// Anything else is soft-cancelled instead, never deleted.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx,
		`DELETE FROM bookings WHERE id = $1 AND status = 'pending' AND payment_intent_id IS NULL`, id)
	if err != nil {
		return fmt.Errorf("bookings: delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrHasPayment
	}
	return nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b            Booking
		kind, status string
		payStatus    string
		startMinutes int16
		intentID     pgtype.Text
		paidAt       pgtype.Timestamptz
	)
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&kind,
		&b.Date,
		&startMinutes,
		&b.DurationMinutes,
		&b.PriceCents,
		&status,
		&payStatus,
		&intentID,
		&paidAt,
		&b.SpecialRequests,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.SessionKind = catalog.Kind(kind)
	b.StartTime = schedule.Clock(startMinutes)
	b.Status = Status(status)
	b.PaymentStatus = PaymentStatus(payStatus)
	if intentID.Valid {
		b.PaymentIntentID = intentID.String
	}
	if paidAt.Valid {
		t := paidAt.Time
		b.PaidAt = &t
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]*Booking, error) {
	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate rows: %w", err)
	}
	return out, nil
}
