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

const refreshTokensTable = "auth.refresh_tokens"

// Keeps the newest-by-expiry rows of a user and deletes the rest.
const evictRefreshTokensSQL = `
	DELETE FROM auth.refresh_tokens
	 WHERE user_id = $1
	   AND id NOT IN (
			SELECT id
			  FROM auth.refresh_tokens
			 WHERE user_id = $1
			 ORDER BY expires_at DESC
			 LIMIT $2
	   )
`

// RefreshTokenRepository implements port.RefreshTokenRepository backed by PostgreSQL.
type RefreshTokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewRefreshTokenRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewRefreshTokenRepository(exec pgExecutor) *RefreshTokenRepository {
	return &RefreshTokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// WithClock overrides the clock used to decide which rows are already expired.
func (r *RefreshTokenRepository) WithClock(now func() time.Time) *RefreshTokenRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// Create evicts the user's expired rows and the oldest live rows above the cap, then inserts the record.
// A per-user advisory lock serialises concurrent logins of the same user.
func (r *RefreshTokenRepository) Create(ctx context.Context, record domain.RefreshTokenRecord, maxPerUser int) error {
	return inTx(ctx, r.exec, func(tx pgx.Tx) error {
		lockSQL, lockArgs, err := r.builder.
			Select().
			Column(squirrel.Expr("pg_advisory_xact_lock(hashtext(?))", record.UserID)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build refresh token lock sql: %w", err)
		}
		if _, err := tx.Exec(ctx, lockSQL, lockArgs...); err != nil {
			return fmt.Errorf("lock refresh tokens: %w", err)
		}

		purgeSQL, purgeArgs, err := r.builder.Delete(refreshTokensTable).
			Where(squirrel.Eq{"user_id": record.UserID}).
			Where(squirrel.LtOrEq{"expires_at": r.now().UTC()}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build purge refresh tokens sql: %w", err)
		}
		if _, err := tx.Exec(ctx, purgeSQL, purgeArgs...); err != nil {
			return fmt.Errorf("purge expired refresh tokens: %w", err)
		}

		if maxPerUser > 0 {
			if _, err := tx.Exec(ctx, evictRefreshTokensSQL, record.UserID, maxPerUser-1); err != nil {
				return fmt.Errorf("evict refresh tokens: %w", err)
			}
		}

		return r.insert(ctx, tx, record)
	})
}

// GetByHash retrieves a refresh token by the hash of its token string.
func (r *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshTokenRecord, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "token_hash", "expires_at", "created_at").
		From(refreshTokensTable).
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh token sql: %w", err)
	}

	var record domain.RefreshTokenRecord
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&record.ID,
		&record.UserID,
		&record.TokenHash,
		&record.ExpiresAt,
		&record.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return &record, nil
}

// Rotate swaps the old record for the next one in a single transaction.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldID string, next domain.RefreshTokenRecord) error {
	return inTx(ctx, r.exec, func(tx pgx.Tx) error {
		stmt, args, err := r.builder.Delete(refreshTokensTable).
			Where(squirrel.Eq{"id": oldID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete refresh token sql: %w", err)
		}

		ct, err := tx.Exec(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("delete rotated refresh token: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return repository.ErrNotFound
		}

		return r.insert(ctx, tx, next)
	})
}

// DeleteByHash removes a single refresh token. Reports whether a row was deleted.
func (r *RefreshTokenRepository) DeleteByHash(ctx context.Context, hash string) (bool, error) {
	stmt, args, err := r.builder.Delete(refreshTokensTable).
		Where(squirrel.Eq{"token_hash": hash}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete refresh token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("delete refresh token: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// DeleteAllForUser removes every refresh token owned by the user.
func (r *RefreshTokenRepository) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	stmt, args, err := r.builder.Delete(refreshTokensTable).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete user refresh tokens sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete user refresh tokens: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

// DeleteExpired removes refresh tokens whose expiry is at or before the cutoff.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete(refreshTokensTable).
		Where(squirrel.LtOrEq{"expires_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired refresh tokens sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

func (r *RefreshTokenRepository) insert(ctx context.Context, exec pgExecutor, record domain.RefreshTokenRecord) error {
	stmt, args, err := r.builder.Insert(refreshTokensTable).
		Columns("id", "user_id", "token_hash", "expires_at", "created_at").
		Values(record.ID, record.UserID, record.TokenHash, record.ExpiresAt, record.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token sql: %w", err)
	}

	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

var _ port.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
