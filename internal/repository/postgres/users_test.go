package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/repository"
)

var userRowColumns = []string{"id", "username", "email", "password_hash", "role", "enabled", "created_at", "password_changed_at"}

func TestUserRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	createdAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	user := domain.Principal{
		ID:           "user-1",
		Username:     "alice",
		Email:        "Alice@School.test",
		PasswordHash: "argon2id$hash",
		Role:         domain.RoleStudent,
		Enabled:      true,
		CreatedAt:    createdAt,
	}

	mock.ExpectExec(`INSERT INTO auth\.users`).
		WithArgs("user-1", "alice", "alice@school.test", "argon2id$hash", "STUDENT", true, createdAt, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_CreateMapsUniqueViolations(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{constraint: "users_username_key", want: repository.ErrDuplicateUsername},
		{constraint: "users_email_key", want: repository.ErrDuplicateEmail},
	}

	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("pgxmock.NewPool: %v", err)
			}
			defer mock.Close()

			mock.ExpectExec(`INSERT INTO auth\.users`).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tc.constraint})

			err = NewUserRepository(mock).Create(context.Background(), domain.Principal{ID: "u", Username: "alice", Role: domain.RoleStudent})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUserRepository_GetByUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	createdAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	changedAt := createdAt.Add(time.Hour)
	rows := pgxmock.NewRows(userRowColumns).
		AddRow("user-1", "alice", "alice@school.test", "hash", "teacher", true, createdAt, &changedAt)

	mock.ExpectQuery(`SELECT .*FROM auth\.users WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(rows)

	user, err := NewUserRepository(mock).GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername returned error: %v", err)
	}
	if user.ID != "user-1" || user.Role != domain.RoleTeacher {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordChangedAt == nil || !user.PasswordChangedAt.Equal(changedAt) {
		t.Fatalf("expected password change timestamp to be populated")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByEmailNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT .*FROM auth\.users WHERE email = \$1`).
		WithArgs("ghost@school.test").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewUserRepository(mock).GetByEmail(context.Background(), " Ghost@School.test ")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	changedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE auth\.users SET password_hash = \$1, password_changed_at = \$2 WHERE id = \$3`).
		WithArgs("new-hash", changedAt, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE auth\.users`).
		WithArgs("new-hash", changedAt, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewUserRepository(mock)
	if err := repo.UpdatePassword(context.Background(), "user-1", "new-hash", changedAt); err != nil {
		t.Fatalf("UpdatePassword returned error: %v", err)
	}
	if err := repo.UpdatePassword(context.Background(), "missing", "new-hash", changedAt); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
