package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/logger"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/security"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/repository"
)

const (
	defaultResetTTL             = time.Hour
	resetTokenBytes             = 32
	passwordResetRateLimitScope = "password_reset:"
)

var (
	// ErrPasswordMismatch indicates the new password and its confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrResetTokenInvalid indicates the reset token is unknown.
	ErrResetTokenInvalid = errors.New("password reset token invalid")
	// ErrTokenAlreadyUsed indicates the reset token was redeemed or superseded.
	ErrTokenAlreadyUsed = errors.New("password reset token already used")
	// ErrResetTokenExpired indicates the reset token is past its expiry.
	ErrResetTokenExpired = errors.New("password reset token expired")
	// ErrWeakPassword indicates the password fails the complexity policy.
	ErrWeakPassword = errors.New("password does not meet complexity requirements")
	// ErrSamePassword indicates the new password equals the current one.
	ErrSamePassword = errors.New("new password must differ from the current password")
)

// PasswordResetService issues and redeems single-use password reset tokens.
type PasswordResetService struct {
	users   port.UserRepository
	tokens  port.PasswordResetTokenRepository
	refresh port.RefreshTokenRepository
	hasher  port.PasswordHasher
	policy  port.PasswordPolicyValidator
	limiter *RateLimiter
	events  port.EventPublisher
	logger  *zap.Logger
	now     func() time.Time
	ttl     time.Duration
}

// NewPasswordResetService constructs a PasswordResetService. limiter guards requests per email.
func NewPasswordResetService(
	users port.UserRepository,
	tokens port.PasswordResetTokenRepository,
	refresh port.RefreshTokenRepository,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	limiter *RateLimiter,
	events port.EventPublisher,
	ttl time.Duration,
	log *zap.Logger,
) *PasswordResetService {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	return &PasswordResetService{
		users:   users,
		tokens:  tokens,
		refresh: refresh,
		hasher:  hasher,
		policy:  policy,
		limiter: limiter,
		events:  events,
		logger:  log,
		now:     time.Now,
		ttl:     ttl,
	}
}

// WithClock overrides the service clock.
func (s *PasswordResetService) WithClock(now func() time.Time) *PasswordResetService {
	if now != nil {
		s.now = now
	}
	return s
}

// RequestReset issues a reset token for the account owning email. Unknown emails return nil
// without creating anything, so callers cannot tell the two cases apart.
func (s *PasswordResetService) RequestReset(ctx context.Context, email, clientKey string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	if err := s.limiter.CheckAndRecord(ctx, passwordResetRateLimitScope+email); err != nil {
		return err
	}

	log := logger.WithContext(ctx, s.logger).With(zap.String("email", logger.MaskEmail(email)))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Debug("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	raw, err := security.GenerateSecureToken(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now().UTC()
	token := domain.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.events.PublishPasswordResetRequested(ctx, domain.PasswordResetRequestedEvent{
		UserID:      user.ID,
		Email:       user.Email,
		Token:       raw,
		RequestedAt: now,
		ExpiresAt:   token.ExpiresAt,
		ClientKey:   clientKey,
	}); err != nil {
		log.Warn("publish password reset requested failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	log.Info("password reset token issued", zap.String("user_id", user.ID))
	return nil
}

// ConfirmReset redeems rawToken and sets newPassword. The token is consumed with a conditional
// update, so concurrent confirmations succeed at most once.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, rawToken, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return ErrResetTokenInvalid
	}

	token, err := s.tokens.GetByHash(ctx, security.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	now := s.now().UTC()
	switch token.State(now) {
	case domain.ResetTokenRedeemed:
		return ErrTokenAlreadyUsed
	case domain.ResetTokenExpired:
		return ErrResetTokenExpired
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if !user.Enabled {
		return ErrAccountDisabled
	}

	if err := s.policy.Validate(newPassword, domain.PasswordContext{Username: user.Username, Email: user.Email}); err != nil {
		return fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}

	log := logger.WithContext(ctx, s.logger).With(zap.String("user_id", user.ID))

	same, err := s.hasher.Verify(newPassword, user.PasswordHash)
	if err != nil {
		log.Warn("compare against current password failed", zap.Error(err))
	}
	if same {
		return ErrSamePassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.tokens.Redeem(ctx, token.ID, user.ID, hash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenAlreadyUsed
		}
		return fmt.Errorf("redeem reset token: %w", err)
	}

	closed, err := s.refresh.DeleteAllForUser(ctx, user.ID)
	if err != nil {
		log.Warn("revoke refresh tokens after reset failed", zap.Error(err))
	}

	if err := s.events.PublishPasswordResetCompleted(ctx, domain.PasswordResetCompletedEvent{
		UserID:         user.ID,
		CompletedAt:    now,
		SessionsClosed: closed,
	}); err != nil {
		log.Warn("publish password reset completed failed", zap.Error(err))
	}

	log.Info("password reset completed", zap.Int("sessions_closed", closed))
	return nil
}
