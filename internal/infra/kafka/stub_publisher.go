package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when kafka.enabled is false.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now()
	}

	p.logger.Info("Stub event published", append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	p.logEvent(domain.EventLoginSucceeded, event.UserID, event.OccurredAt,
		zap.String("username", event.Username),
		zap.String("role", event.Role.String()),
		zap.String("client", logger.MaskClientKey(event.ClientKey)),
	)
	return nil
}

func (p *StubPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	p.logEvent(domain.EventLoginFailed, event.UserID, event.OccurredAt,
		zap.String("username", event.Username),
		zap.String("reason", event.Reason),
		zap.String("client", logger.MaskClientKey(event.ClientKey)),
	)
	return nil
}

func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(domain.EventUserRegistered, event.UserID, event.RegisteredAt,
		zap.String("username", event.Username),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("role", event.Role.String()),
	)
	return nil
}

// PublishPasswordResetRequested never logs the raw token.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(domain.EventPasswordResetRequested, event.UserID, event.RequestedAt,
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("token", logger.MaskString(event.Token)),
		zap.Time("expires_at", event.ExpiresAt.UTC()),
	)
	return nil
}

func (p *StubPublisher) PublishPasswordResetCompleted(_ context.Context, event domain.PasswordResetCompletedEvent) error {
	p.logEvent(domain.EventPasswordResetCompleted, event.UserID, event.CompletedAt,
		zap.Int("sessions_closed", event.SessionsClosed),
	)
	return nil
}

func (p *StubPublisher) PublishSessionsRevoked(_ context.Context, event domain.SessionsRevokedEvent) error {
	p.logEvent(domain.EventSessionsRevoked, event.UserID, event.RevokedAt,
		zap.String("revoked_by", event.RevokedBy),
		zap.String("scope", event.Scope),
		zap.Int("count", event.Count),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
