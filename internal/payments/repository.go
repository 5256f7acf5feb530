package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/divinetalks/platform/internal/bookings"
)

// Record is one observed confirmation event, success or failure. At most
// one succeeded record exists per processor intent; duplicate success
// confirmations insert nothing. Failure events append freely since the same
// intent can fail and later succeed on a retry.
type Record struct {
	ID          uuid.UUID
	BookingID   uuid.UUID
	IntentID    string
	AmountCents int64
	Currency    string
	Source      string
	Status      string
	ReceivedAt  time.Time
}

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository applies payment outcomes to bookings and keeps the payment
// and processed-event records.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("payments: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for tests.
func NewRepositoryWithDB(db DB) *Repository {
	return &Repository{db: db}
}

// ConfirmSuccess applies a verified successful charge to a booking. The
// booking row is locked for the duration so the client path and the webhook
// path cannot both apply; whichever arrives second observes the succeeded
// payment status and returns applied=false without writing anything. A
// booking that was cancelled before the confirmation landed stays cancelled:
// the charge is recorded for the audit trail, but the lifecycle status is
// not moved to paid (the freed slot may already be held by someone else).
func (r *Repository) ConfirmSuccess(ctx context.Context, bookingID uuid.UUID, intentID string, amountCents int64, source string, paidAt time.Time) (applied bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("payments: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var payStatus, status string
	err = tx.QueryRow(ctx,
		`SELECT payment_status, status FROM bookings WHERE id = $1 FOR UPDATE`, bookingID,
	).Scan(&payStatus, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, bookings.ErrNotFound
		}
		return false, fmt.Errorf("payments: lock booking: %w", err)
	}
	if payStatus == string(bookings.PaymentSucceeded) {
		return false, nil
	}

	if status == string(bookings.StatusCancelled) {
		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET payment_status = 'succeeded', paid_at = $2, payment_intent_id = $3
			WHERE id = $1
		`, bookingID, paidAt, intentID)
		if err != nil {
			return false, fmt.Errorf("payments: record charge on cancelled booking: %w", err)
		}
		if err := r.insertRecord(ctx, tx, bookingID, intentID, amountCents, source, "succeeded", paidAt); err != nil {
			return false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("payments: commit: %w", err)
		}
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE bookings
		SET payment_status = 'succeeded', status = 'paid', paid_at = $2, payment_intent_id = $3
		WHERE id = $1
	`, bookingID, paidAt, intentID)
	if err != nil {
		return false, fmt.Errorf("payments: mark booking paid: %w", err)
	}

	if err := r.insertRecord(ctx, tx, bookingID, intentID, amountCents, source, "succeeded", paidAt); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("payments: commit: %w", err)
	}
	return true, nil
}

func (r *Repository) insertRecord(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, intentID string, amountCents int64, source, status string, receivedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payments (id, booking_id, intent_id, amount_cents, currency, source, status, received_at)
		VALUES ($1, $2, $3, $4, 'usd', $5, $6, $7)
		ON CONFLICT (intent_id) WHERE status = 'succeeded' DO NOTHING
	`, uuid.New(), bookingID, intentID, amountCents, source, status, receivedAt)
	if err != nil {
		return fmt.Errorf("payments: insert record: %w", err)
	}
	return nil
}

// MarkFailed records a failed charge attempt: payment_status moves to failed
// and the failure is appended to the payments audit trail. A succeeded
// payment is never downgraded; late failure events for an already-paid
// booking are no-ops.
func (r *Repository) MarkFailed(ctx context.Context, bookingID uuid.UUID, intentID string, amountCents int64, source string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("payments: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var payStatus string
	err = tx.QueryRow(ctx,
		`SELECT payment_status FROM bookings WHERE id = $1 FOR UPDATE`, bookingID,
	).Scan(&payStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bookings.ErrNotFound
		}
		return fmt.Errorf("payments: lock booking: %w", err)
	}
	if payStatus == string(bookings.PaymentSucceeded) {
		return nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE bookings SET payment_status = 'failed' WHERE id = $1`, bookingID)
	if err != nil {
		return fmt.Errorf("payments: mark failed: %w", err)
	}
	if intentID != "" {
		if err := r.insertRecord(ctx, tx, bookingID, intentID, amountCents, source, "failed", time.Now().UTC()); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("payments: commit: %w", err)
	}
	return nil
}

// GetRecordByIntent fetches the payment record for a processor intent.
func (r *Repository) GetRecordByIntent(ctx context.Context, intentID string) (*Record, error) {
	query := `
		SELECT id, booking_id, intent_id, amount_cents, currency, source, status, received_at
		FROM payments WHERE intent_id = $1 AND status = 'succeeded'
	`
	var rec Record
	err := r.db.QueryRow(ctx, query, intentID).Scan(
		&rec.ID, &rec.BookingID, &rec.IntentID, &rec.AmountCents,
		&rec.Currency, &rec.Source, &rec.Status, &rec.ReceivedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bookings.ErrNotFound
		}
		return nil, fmt.Errorf("payments: load record: %w", err)
	}
	return &rec, nil
}
