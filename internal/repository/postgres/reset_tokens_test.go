package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/repository"
)

func TestPasswordResetTokenRepository_CreateSupersedesPrevious(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	token := domain.PasswordResetToken{
		ID:        "prt-2",
		UserID:    "user-1",
		TokenHash: "hash-2",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE auth\.password_reset_tokens SET used = \$1 WHERE used = \$2 AND user_id = \$3`).
		WithArgs(true, false, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO auth\.password_reset_tokens`).
		WithArgs("prt-2", "user-1", "hash-2", token.ExpiresAt, false, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := NewPasswordResetTokenRepository(mock).Create(context.Background(), token); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPasswordResetTokenRepository_RedeemOnce(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	changedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE auth\.password_reset_tokens SET used = \$1 WHERE id = \$2 AND used = \$3`).
		WithArgs(true, "prt-1", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE auth\.users SET password_hash = \$1, password_changed_at = \$2 WHERE id = \$3`).
		WithArgs("new-hash", changedAt, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE auth\.password_reset_tokens`).
		WithArgs(true, "prt-1", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	repo := NewPasswordResetTokenRepository(mock)
	if err := repo.Redeem(context.Background(), "prt-1", "user-1", "new-hash", changedAt); err != nil {
		t.Fatalf("first Redeem returned error: %v", err)
	}
	if err := repo.Redeem(context.Background(), "prt-1", "user-1", "new-hash", changedAt); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second Redeem, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPasswordResetTokenRepository_RedeemRollsBackOnPasswordFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	changedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	dbDown := errors.New("db down")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE auth\.password_reset_tokens`).
		WithArgs(true, "prt-1", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE auth\.users`).
		WithArgs("new-hash", changedAt, "user-1").
		WillReturnError(dbDown)
	mock.ExpectRollback()

	err = NewPasswordResetTokenRepository(mock).Redeem(context.Background(), "prt-1", "user-1", "new-hash", changedAt)
	if !errors.Is(err, dbDown) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("password failure must not look like a consumed token: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPasswordResetTokenRepository_GetByHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "used", "created_at"}).
		AddRow("prt-1", "user-1", "hash-1", now.Add(time.Hour), true, now)

	mock.ExpectQuery(`SELECT .*FROM auth\.password_reset_tokens WHERE token_hash = \$1`).
		WithArgs("hash-1").
		WillReturnRows(rows)

	token, err := NewPasswordResetTokenRepository(mock).GetByHash(context.Background(), "hash-1")
	if err != nil {
		t.Fatalf("GetByHash returned error: %v", err)
	}
	if !token.Used || token.State(now) != domain.ResetTokenRedeemed {
		t.Fatalf("expected redeemed token, got %+v", token)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMigrationURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@db:5432/school":   "pgx5://u:p@db:5432/school",
		"postgresql://u:p@db:5432/school": "pgx5://u:p@db:5432/school",
		"pgx5://u:p@db:5432/school":       "pgx5://u:p@db:5432/school",
	}
	for in, want := range cases {
		if got := migrationURL(in); got != want {
			t.Fatalf("migrationURL(%q) = %q, want %q", in, got, want)
		}
	}
}
