package port

import (
	"context"
	"time"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
)

// RefreshTokenRepository manages persisted refresh tokens.
type RefreshTokenRepository interface {
	// Create inserts the record, first evicting the owner's oldest-by-expiry rows so that at most
	// maxPerUser live rows remain. Eviction and insert happen atomically per user.
	Create(ctx context.Context, record domain.RefreshTokenRecord, maxPerUser int) error
	GetByHash(ctx context.Context, hash string) (*domain.RefreshTokenRecord, error)
	// Rotate deletes oldID and inserts next in one transaction. Returns repository.ErrNotFound
	// when oldID no longer exists.
	Rotate(ctx context.Context, oldID string, next domain.RefreshTokenRecord) error
	DeleteByHash(ctx context.Context, hash string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// PasswordResetTokenRepository manages single-use password reset tokens.
type PasswordResetTokenRepository interface {
	// Create marks every unused token of the same user as used and inserts token, atomically.
	Create(ctx context.Context, token domain.PasswordResetToken) error
	GetByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error)
	// Redeem flips used from false to true and replaces the user's password hash atomically.
	// Returns repository.ErrNotFound when the token does not exist or was already used.
	Redeem(ctx context.Context, id, userID, passwordHash string, changedAt time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
