package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestUserDirectoryContact(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	dir := NewUserDirectoryWithDB(mock)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT email, display_name FROM users`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"email", "display_name"}).
			AddRow("jane@example.com", "Jane"))

	email, name, err := dir.Contact(context.Background(), userID)
	if err != nil {
		t.Fatalf("Contact returned error: %v", err)
	}
	if email != "jane@example.com" || name != "Jane" {
		t.Errorf("contact = %s <%s>", name, email)
	}

	mock.ExpectQuery(`SELECT email, display_name FROM users`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"email", "display_name"}))

	if _, _, err := dir.Contact(context.Background(), userID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
