package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users         *UserRepository
	RefreshTokens *RefreshTokenRepository
	ResetTokens   *PasswordResetTokenRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(pool),
		RefreshTokens: NewRefreshTokenRepository(pool),
		ResetTokens:   NewPasswordResetTokenRepository(pool),
	}
}
