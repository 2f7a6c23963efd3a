package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/logger"
)

var (
	// ErrInvalidToken wraps every reason a token is unusable.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked indicates the token id is on the revocation list.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenTypeMismatch indicates a refresh token was presented where an access token is required, or vice versa.
	ErrTokenTypeMismatch = errors.New("token type mismatch")
	// ErrSubjectMismatch indicates the token belongs to a different user than expected.
	ErrSubjectMismatch = errors.New("token subject mismatch")
)

// TokenValidator decides whether an access token is currently usable.
type TokenValidator struct {
	codec       port.TokenCodec
	revocations *RevocationStore
	logger      *zap.Logger
}

// NewTokenValidator constructs a TokenValidator.
func NewTokenValidator(codec port.TokenCodec, revocations *RevocationStore, log *zap.Logger) *TokenValidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenValidator{codec: codec, revocations: revocations, logger: log}
}

// ValidateAccess checks signature, expiry, revocation, type and that the subject is expectedUsername.
func (v *TokenValidator) ValidateAccess(ctx context.Context, token, expectedUsername string) (*domain.TokenClaims, error) {
	claims, err := v.validate(ctx, token, domain.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if claims.Subject != strings.TrimSpace(expectedUsername) {
		return nil, invalidToken(ErrSubjectMismatch)
	}
	return claims, nil
}

// Authenticate performs the ValidateAccess checks without a subject expectation.
func (v *TokenValidator) Authenticate(ctx context.Context, token string) (*domain.TokenClaims, error) {
	return v.validate(ctx, token, domain.TokenTypeAccess)
}

func (v *TokenValidator) validate(ctx context.Context, token string, expected domain.TokenType) (*domain.TokenClaims, error) {
	claims, err := v.codec.Parse(token)
	if err != nil {
		return nil, invalidToken(err)
	}

	revoked, err := v.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		logger.WithContext(ctx, v.logger).Warn("revocation check failed, rejecting token",
			zap.String("jti", claims.ID), zap.Error(err))
	}
	if revoked {
		return nil, invalidToken(ErrTokenRevoked)
	}

	if claims.Type != expected {
		return nil, invalidToken(ErrTokenTypeMismatch)
	}
	return claims, nil
}

func invalidToken(cause error) error {
	return fmt.Errorf("%w: %w", ErrInvalidToken, cause)
}
