package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/repository"
)

const resetTokensTable = "auth.password_reset_tokens"

// PasswordResetTokenRepository implements port.PasswordResetTokenRepository backed by PostgreSQL.
type PasswordResetTokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPasswordResetTokenRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewPasswordResetTokenRepository(exec pgExecutor) *PasswordResetTokenRepository {
	return &PasswordResetTokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create supersedes the user's unused tokens and inserts the new one.
func (r *PasswordResetTokenRepository) Create(ctx context.Context, token domain.PasswordResetToken) error {
	return inTx(ctx, r.exec, func(tx pgx.Tx) error {
		supersedeSQL, supersedeArgs, err := r.builder.Update(resetTokensTable).
			Set("used", true).
			Where(squirrel.Eq{"user_id": token.UserID, "used": false}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build supersede reset tokens sql: %w", err)
		}
		if _, err := tx.Exec(ctx, supersedeSQL, supersedeArgs...); err != nil {
			return fmt.Errorf("supersede reset tokens: %w", err)
		}

		insertSQL, insertArgs, err := r.builder.Insert(resetTokensTable).
			Columns("id", "user_id", "token_hash", "expires_at", "used", "created_at").
			Values(token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.Used, token.CreatedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert reset token sql: %w", err)
		}
		if _, err := tx.Exec(ctx, insertSQL, insertArgs...); err != nil {
			return fmt.Errorf("insert reset token: %w", err)
		}

		return nil
	})
}

// GetByHash retrieves a reset token by the hash of its raw value.
func (r *PasswordResetTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "token_hash", "expires_at", "used", "created_at").
		From(resetTokensTable).
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select reset token sql: %w", err)
	}

	var token domain.PasswordResetToken
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.Used,
		&token.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan reset token: %w", err)
	}

	return &token, nil
}

// Redeem consumes the token and stores the user's new password hash in one transaction.
// Only one concurrent caller can consume a token; a failed password update leaves it unused.
func (r *PasswordResetTokenRepository) Redeem(ctx context.Context, id, userID, passwordHash string, changedAt time.Time) error {
	return inTx(ctx, r.exec, func(tx pgx.Tx) error {
		stmt, args, err := r.builder.Update(resetTokensTable).
			Set("used", true).
			Where(squirrel.Eq{"id": id, "used": false}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build consume reset token sql: %w", err)
		}

		ct, err := tx.Exec(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("consume reset token: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return repository.ErrNotFound
		}

		if err := NewUserRepository(tx).UpdatePassword(ctx, userID, passwordHash, changedAt); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("update password: user %s not found", userID)
			}
			return err
		}
		return nil
	})
}

// DeleteExpired removes reset tokens whose expiry is at or before the cutoff.
func (r *PasswordResetTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete(resetTokensTable).
		Where(squirrel.LtOrEq{"expires_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired reset tokens sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired reset tokens: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

var _ port.PasswordResetTokenRepository = (*PasswordResetTokenRepository)(nil)
