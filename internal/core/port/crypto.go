package port

import (
	"time"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
)

// PasswordPolicyValidator enforces password strength requirements.
type PasswordPolicyValidator interface {
	Validate(password string, ctx domain.PasswordContext) error
}

// Argon2Params captures tunable parameters for the Argon2id hashing algorithm.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// TokenCodec signs and parses compact signed tokens.
type TokenCodec interface {
	Issue(principal domain.Principal, tokenType domain.TokenType, ttl time.Duration) (string, *domain.TokenClaims, error)
	Parse(token string) (*domain.TokenClaims, error)
}
