package domain

import (
	"strings"
	"time"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "ACCESS"
	TokenTypeRefresh TokenType = "REFRESH"
)

// ParseTokenType normalises the typ claim.
func ParseTokenType(value string) (TokenType, bool) {
	switch TokenType(strings.ToUpper(strings.TrimSpace(value))) {
	case TokenTypeAccess:
		return TokenTypeAccess, true
	case TokenTypeRefresh:
		return TokenTypeRefresh, true
	default:
		return "", false
	}
}

// TokenClaims is the decoded, verified content of a signed token.
type TokenClaims struct {
	ID        string
	Subject   string
	Role      Role
	Type      TokenType
	UserID    string
	Email     string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the token has elapsed its validity window.
func (c TokenClaims) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}

// Remaining returns the lifetime left at the supplied instant, never negative.
func (c TokenClaims) Remaining(at time.Time) time.Duration {
	if c.IsExpired(at) {
		return 0
	}
	return c.ExpiresAt.Sub(at)
}

// Caller projects the claims onto the identity bound to a request.
func (c TokenClaims) Caller() Caller {
	return Caller{
		UserID:   c.UserID,
		Username: c.Subject,
		Email:    c.Email,
		Role:     c.Role,
	}
}

// RefreshTokenRecord is a persisted refresh token. Only the hash of the token string is stored.
type RefreshTokenRecord struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the record has elapsed its validity window.
func (r RefreshTokenRecord) IsExpired(at time.Time) bool {
	return !r.ExpiresAt.After(at)
}

// ResetTokenState enumerates the password reset token lifecycle.
type ResetTokenState string

const (
	ResetTokenCreated  ResetTokenState = "created"
	ResetTokenRedeemed ResetTokenState = "redeemed"
	ResetTokenExpired  ResetTokenState = "expired"
)

// PasswordResetToken models a single-use password reset artifact.
// A superseded token is stored as used, so it reads as redeemed.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// IsExpired reports whether the password reset token can still be redeemed.
func (t PasswordResetToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// State resolves the lifecycle state at the supplied instant. Used wins over expiry.
func (t PasswordResetToken) State(at time.Time) ResetTokenState {
	switch {
	case t.Used:
		return ResetTokenRedeemed
	case t.IsExpired(at):
		return ResetTokenExpired
	default:
		return ResetTokenCreated
	}
}

// Consume marks the password reset token as used.
// Returns true when the token transitions from unused to used.
func (t *PasswordResetToken) Consume() bool {
	if t.Used {
		return false
	}
	t.Used = true
	return true
}
