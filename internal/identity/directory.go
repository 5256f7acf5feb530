package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned when a user id has no directory entry.
var ErrUserNotFound = errors.New("identity: user not found")

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserDirectory resolves user ids to contact details from the users table.
type UserDirectory struct {
	db rowQuerier
}

// NewUserDirectory creates a directory backed by pgxpool.
func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	if pool == nil {
		panic("identity: pgx pool required")
	}
	return &UserDirectory{db: pool}
}

// NewUserDirectoryWithDB allows injecting a mock database for tests.
func NewUserDirectoryWithDB(db rowQuerier) *UserDirectory {
	return &UserDirectory{db: db}
}

// Contact returns the user's email address and display name.
func (d *UserDirectory) Contact(ctx context.Context, userID uuid.UUID) (string, string, error) {
	var email, name string
	err := d.db.QueryRow(ctx,
		`SELECT email, display_name FROM users WHERE id = $1`, userID,
	).Scan(&email, &name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrUserNotFound
		}
		return "", "", fmt.Errorf("identity: contact lookup: %w", err)
	}
	return email, name, nil
}
