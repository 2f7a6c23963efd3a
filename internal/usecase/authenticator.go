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

var (
	// ErrInvalidCredentials is returned for unknown users and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled indicates the account exists but may not sign in.
	ErrAccountDisabled = errors.New("account is disabled")
)

const (
	loginFailureUnknownUser   = "unknown_user"
	loginFailureWrongPassword = "wrong_password"
	loginFailureDisabled      = "account_disabled"
)

// CredentialAuthenticator runs one login attempt: rate check, credential check, event.
type CredentialAuthenticator struct {
	users     port.UserRepository
	hasher    port.PasswordHasher
	limiter   *RateLimiter
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
	dummyHash string
}

// NewCredentialAuthenticator constructs the authenticator. A throwaway hash is computed up front
// so unknown usernames cost the same hashing work as known ones.
func NewCredentialAuthenticator(users port.UserRepository, hasher port.PasswordHasher, limiter *RateLimiter, events port.EventPublisher, log *zap.Logger) (*CredentialAuthenticator, error) {
	if log == nil {
		log = zap.NewNop()
	}

	seed, err := security.GenerateSecureToken(24)
	if err != nil {
		return nil, fmt.Errorf("generate dummy password: %w", err)
	}
	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}

	return &CredentialAuthenticator{
		users:     users,
		hasher:    hasher,
		limiter:   limiter,
		events:    events,
		logger:    log,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

// WithClock overrides the clock used for event timestamps.
func (a *CredentialAuthenticator) WithClock(now func() time.Time) *CredentialAuthenticator {
	if now != nil {
		a.now = now
	}
	return a
}

// Authenticate verifies username and password for clientKey. The returned principal has no password hash.
func (a *CredentialAuthenticator) Authenticate(ctx context.Context, username, password, clientKey string) (*domain.Principal, error) {
	if err := a.limiter.CheckAndRecord(ctx, clientKey); err != nil {
		return nil, err
	}

	username = strings.TrimSpace(username)
	log := logger.WithContext(ctx, a.logger).With(
		zap.String("username", username),
		zap.String("client", logger.MaskClientKey(clientKey)),
	)

	var principal *domain.Principal
	if username != "" {
		found, err := a.users.GetByUsername(ctx, username)
		switch {
		case err == nil:
			principal = found
		case errors.Is(err, repository.ErrNotFound):
		default:
			return nil, fmt.Errorf("lookup user: %w", err)
		}
	}

	if principal == nil {
		_, _ = a.hasher.Verify(password, a.dummyHash)
		a.publishFailure(ctx, log, "", username, loginFailureUnknownUser, clientKey)
		return nil, ErrInvalidCredentials
	}

	ok, err := a.hasher.Verify(password, principal.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		a.publishFailure(ctx, log, principal.ID, username, loginFailureWrongPassword, clientKey)
		return nil, ErrInvalidCredentials
	}

	if !principal.Enabled {
		a.publishFailure(ctx, log, principal.ID, username, loginFailureDisabled, clientKey)
		return nil, ErrAccountDisabled
	}

	if err := a.limiter.Reset(ctx, clientKey); err != nil {
		log.Warn("rate limit reset after login failed", zap.Error(err))
	}

	if err := a.events.PublishLoginSucceeded(ctx, domain.LoginSucceededEvent{
		UserID:     principal.ID,
		Username:   principal.Username,
		Role:       principal.Role,
		ClientKey:  clientKey,
		OccurredAt: a.now().UTC(),
	}); err != nil {
		log.Warn("publish login succeeded failed", zap.Error(err))
	}

	log.Info("login succeeded", zap.String("user_id", principal.ID))
	sanitized := principal.Sanitized()
	return &sanitized, nil
}

func (a *CredentialAuthenticator) publishFailure(ctx context.Context, log *zap.Logger, userID, username, reason, clientKey string) {
	log.Info("login failed", zap.String("reason", reason))
	if err := a.events.PublishLoginFailed(ctx, domain.LoginFailedEvent{
		UserID:     userID,
		Username:   username,
		Reason:     reason,
		ClientKey:  clientKey,
		OccurredAt: a.now().UTC(),
	}); err != nil {
		log.Warn("publish login failed event failed", zap.Error(err))
	}
}
