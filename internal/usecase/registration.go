package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/logger"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/repository"
)

var (
	// ErrInvalidUsername indicates the username is empty or uses unsupported characters.
	ErrInvalidUsername = errors.New("username must be 3-50 characters of letters, digits, '.', '_' or '-'")
	// ErrInvalidEmail indicates the email address cannot be parsed.
	ErrInvalidEmail = errors.New("email address is invalid")
	// ErrInvalidRole indicates the role is not one of the known roles.
	ErrInvalidRole = errors.New("role is invalid")
	// ErrUsernameTaken indicates another account owns the username.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrEmailTaken indicates another account owns the email.
	ErrEmailTaken = errors.New("email already registered")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,50}$`)

// RegistrationInput is the payload for a new account.
type RegistrationInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// RegistrationService creates accounts.
type RegistrationService struct {
	users  port.UserRepository
	hasher port.PasswordHasher
	policy port.PasswordPolicyValidator
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(users port.UserRepository, hasher port.PasswordHasher, policy port.PasswordPolicyValidator, events port.EventPublisher, log *zap.Logger) *RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{
		users:  users,
		hasher: hasher,
		policy: policy,
		events: events,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the clock used for CreatedAt.
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	if now != nil {
		s.now = now
	}
	return s
}

// Register validates input, stores the account and returns it without the password hash.
func (s *RegistrationService) Register(ctx context.Context, input RegistrationInput) (*domain.Principal, error) {
	username := strings.TrimSpace(input.Username)
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}

	role, ok := domain.ParseRole(input.Role)
	if !ok {
		return nil, ErrInvalidRole
	}

	if err := s.policy.Validate(input.Password, domain.PasswordContext{Username: username, Email: email}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	principal := domain.Principal{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Enabled:      true,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.Create(ctx, principal); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, ErrUsernameTaken
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		default:
			return nil, fmt.Errorf("create user: %w", err)
		}
	}

	log := logger.WithContext(ctx, s.logger).With(zap.String("user_id", principal.ID))
	if err := s.events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
		UserID:       principal.ID,
		Username:     principal.Username,
		Email:        principal.Email,
		Role:         principal.Role,
		RegisteredAt: principal.CreatedAt,
	}); err != nil {
		log.Warn("publish user registered failed", zap.Error(err))
	}

	log.Info("user registered", zap.String("role", role.String()))
	sanitized := principal.Sanitized()
	return &sanitized, nil
}
