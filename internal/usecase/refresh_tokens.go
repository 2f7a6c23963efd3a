package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/logger"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/security"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/repository"
)

// ErrInvalidRefreshToken indicates the refresh token is unknown, expired, already rotated or not a refresh token.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// RefreshTokenService exchanges and revokes persisted refresh tokens.
// Every successful exchange consumes the presented token and returns a new one.
type RefreshTokenService struct {
	codec  port.TokenCodec
	repo   port.RefreshTokenRepository
	users  port.UserRepository
	issuer *TokenIssuer
	logger *zap.Logger
	now    func() time.Time
}

// NewRefreshTokenService constructs a RefreshTokenService.
func NewRefreshTokenService(codec port.TokenCodec, repo port.RefreshTokenRepository, users port.UserRepository, issuer *TokenIssuer, log *zap.Logger) *RefreshTokenService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RefreshTokenService{
		codec:  codec,
		repo:   repo,
		users:  users,
		issuer: issuer,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the clock used for record expiry checks.
func (s *RefreshTokenService) WithClock(now func() time.Time) *RefreshTokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// Rotate exchanges token for a new access token and a new refresh token. The old record is
// deleted in the same transaction that stores the new one, so a token works at most once.
func (s *RefreshTokenService) Rotate(ctx context.Context, token string) (*TokenPair, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidRefreshToken
	}

	claims, err := s.codec.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	if claims.Type != domain.TokenTypeRefresh {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, ErrTokenTypeMismatch)
	}

	record, err := s.repo.GetByHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	log := logger.WithContext(ctx, s.logger).With(zap.String("user_id", record.UserID))

	if record.IsExpired(s.now()) {
		if _, err := s.repo.DeleteByHash(ctx, record.TokenHash); err != nil {
			log.Warn("delete expired refresh token failed", zap.Error(err))
		}
		return nil, ErrInvalidRefreshToken
	}
	if record.UserID != claims.UserID {
		log.Warn("refresh token owner does not match claims", zap.String("claims_user_id", claims.UserID))
		return nil, ErrInvalidRefreshToken
	}

	principal, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !principal.Enabled {
		return nil, ErrAccountDisabled
	}

	access, accessClaims, err := s.issuer.IssueAccessToken(*principal, false)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, next, err := s.issuer.mintRefreshToken(*principal)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Rotate(ctx, record.ID, next); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Info("refresh token reused after rotation")
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:   access,
		AccessClaims:  accessClaims,
		RefreshToken:  refresh,
		RefreshClaims: refreshClaims,
	}, nil
}

// RevokeAllForUser deletes every refresh token of userID and returns how many were removed.
func (s *RefreshTokenService) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	count, err := s.repo.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return count, nil
}

// RevokeOne deletes the record for token. Unknown tokens report false without error.
func (s *RefreshTokenService) RevokeOne(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	deleted, err := s.repo.DeleteByHash(ctx, security.HashToken(token))
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return deleted, nil
}
