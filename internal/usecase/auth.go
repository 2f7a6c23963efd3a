package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/logger"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/repository"
)

var (
	// ErrForbidden indicates the Authorizer denied the caller.
	ErrForbidden = errors.New("forbidden")
	// ErrUserNotFound indicates the target account does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// LoginInput carries a login attempt. ClientKey identifies the requester for rate limiting.
type LoginInput struct {
	Username   string
	Password   string
	RememberMe bool
	ClientKey  string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Principal domain.Principal
	Tokens    *TokenPair
}

// AuthService composes the login, refresh and logout flows.
type AuthService struct {
	authenticator *CredentialAuthenticator
	issuer        *TokenIssuer
	refresh       *RefreshTokenService
	revocations   *RevocationStore
	authorizer    port.Authorizer
	users         port.UserRepository
	events        port.EventPublisher
	logger        *zap.Logger
	now           func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	authenticator *CredentialAuthenticator,
	issuer *TokenIssuer,
	refresh *RefreshTokenService,
	revocations *RevocationStore,
	authorizer port.Authorizer,
	users port.UserRepository,
	events port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		authenticator: authenticator,
		issuer:        issuer,
		refresh:       refresh,
		revocations:   revocations,
		authorizer:    authorizer,
		users:         users,
		events:        events,
		logger:        log,
		now:           time.Now,
	}
}

// WithClock overrides the clock used to compute remaining token lifetime.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Login authenticates the credentials and issues an access and refresh token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	principal, err := s.authenticator.Authenticate(ctx, input.Username, input.Password, input.ClientKey)
	if err != nil {
		return nil, err
	}

	tokens, err := s.issuer.IssuePair(ctx, *principal, input.RememberMe)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Principal: *principal, Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.refresh.Rotate(ctx, refreshToken)
}

// Logout revokes the caller's access token and, when given, the refresh token.
// Both steps are best-effort.
func (s *AuthService) Logout(ctx context.Context, access *domain.TokenClaims, refreshToken string) error {
	if access == nil {
		return ErrInvalidToken
	}
	log := logger.WithContext(ctx, s.logger).With(zap.String("user_id", access.UserID))

	s.revokeAccess(ctx, log, access)

	count := 0
	if refreshToken != "" {
		deleted, err := s.refresh.RevokeOne(ctx, refreshToken)
		if err != nil {
			log.Warn("revoke refresh token on logout failed", zap.Error(err))
		}
		if deleted {
			count = 1
		}
	}

	s.publishRevoked(ctx, log, access.UserID, access.UserID, domain.RevocationScopeSingle, count)
	return nil
}

// LogoutAll revokes the caller's access token and deletes all of the caller's refresh tokens.
// Other access tokens already issued stay valid until they expire.
func (s *AuthService) LogoutAll(ctx context.Context, access *domain.TokenClaims) (int, error) {
	if access == nil {
		return 0, ErrInvalidToken
	}
	log := logger.WithContext(ctx, s.logger).With(zap.String("user_id", access.UserID))

	s.revokeAccess(ctx, log, access)

	count, err := s.refresh.RevokeAllForUser(ctx, access.UserID)
	if err != nil {
		return 0, err
	}

	s.publishRevoked(ctx, log, access.UserID, access.UserID, domain.RevocationScopeAll, count)
	return count, nil
}

// RevokeUserSessions deletes all refresh tokens of userID on behalf of an administrator.
func (s *AuthService) RevokeUserSessions(ctx context.Context, caller domain.Caller, userID string) (int, error) {
	decision := s.authorizer.Authorize(ctx, caller, []domain.Role{domain.RoleAdmin})
	if !decision.Allowed {
		logger.WithContext(ctx, s.logger).Info("revoke sessions denied",
			zap.String("caller_id", caller.UserID), zap.String("reason", decision.Reason))
		return 0, ErrForbidden
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("lookup user: %w", err)
	}

	count, err := s.refresh.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	log := logger.WithContext(ctx, s.logger).With(zap.String("user_id", userID))
	s.publishRevoked(ctx, log, userID, caller.UserID, domain.RevocationScopeAll, count)
	return count, nil
}

func (s *AuthService) revokeAccess(ctx context.Context, log *zap.Logger, access *domain.TokenClaims) {
	if err := s.revocations.Revoke(ctx, access.ID, access.Remaining(s.now())); err != nil {
		log.Warn("revoke access token failed", zap.String("jti", access.ID), zap.Error(err))
	}
}

func (s *AuthService) publishRevoked(ctx context.Context, log *zap.Logger, userID, revokedBy, scope string, count int) {
	if err := s.events.PublishSessionsRevoked(ctx, domain.SessionsRevokedEvent{
		UserID:    userID,
		RevokedBy: revokedBy,
		Scope:     scope,
		Count:     count,
		RevokedAt: s.now().UTC(),
	}); err != nil {
		log.Warn("publish sessions revoked failed", zap.Error(err))
	}
}
