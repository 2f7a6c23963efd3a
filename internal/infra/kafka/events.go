package kafka

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/config"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/logger"
)

const schemaVersion = "1.0"

const defaultPublishTimeout = 250 * time.Millisecond

// ErrPublishTimeout is returned when the producer input stays full past the publish timeout.
var ErrPublishTimeout = errors.New("kafka: publish timed out")

// EventPublisher implements port.EventPublisher on top of Producer.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
	timeout  time.Duration
	now      func() time.Time
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, timeout time.Duration, log *zap.Logger) *EventPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &EventPublisher{
		producer: producer,
		appCfg:   appCfg,
		timeout:  timeout,
		logger:   log,
		now:      time.Now,
	}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func newEventID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), rand.Reader).String()
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = p.now()
	}
	if eventID == "" {
		eventID = newEventID(ts)
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if requestID := logger.RequestIDFromContext(ctx); requestID != "" {
		metadata["request_id"] = requestID
	}

	body, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(body),
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case p.producer.Input() <- message:
		return nil
	case <-timer.C:
		p.logger.Warn("Kafka publish timed out", zap.String("event_type", eventType))
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLoginSucceeded publishes auth.login.succeeded events.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		UserID     string    `json:"user_id"`
		Username   string    `json:"username"`
		Role       string    `json:"role"`
		ClientKey  string    `json:"client_key,omitempty"`
		OccurredAt time.Time `json:"occurred_at"`
	}{
		UserID:     event.UserID,
		Username:   event.Username,
		Role:       event.Role.String(),
		ClientKey:  logger.MaskClientKey(event.ClientKey),
		OccurredAt: event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, domain.EventLoginSucceeded, event.UserID, event.OccurredAt, payload)
}

// PublishLoginFailed publishes auth.login.failed events.
func (p *EventPublisher) PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error {
	payload := struct {
		UserID     string    `json:"user_id,omitempty"`
		Username   string    `json:"username"`
		Reason     string    `json:"reason"`
		ClientKey  string    `json:"client_key,omitempty"`
		OccurredAt time.Time `json:"occurred_at"`
	}{
		UserID:     event.UserID,
		Username:   event.Username,
		Reason:     event.Reason,
		ClientKey:  logger.MaskClientKey(event.ClientKey),
		OccurredAt: event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, domain.EventLoginFailed, event.UserID, event.OccurredAt, payload)
}

// PublishUserRegistered publishes auth.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		Role         string    `json:"role"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		UserID:       event.UserID,
		Username:     event.Username,
		Email:        event.Email,
		Role:         event.Role.String(),
		RegisteredAt: event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, domain.EventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishPasswordResetRequested publishes auth.password.reset_requested events.
// The raw token is included for the mail relay that consumes this topic.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		UserID      string    `json:"user_id"`
		Email       string    `json:"email"`
		Token       string    `json:"token"`
		RequestedAt time.Time `json:"requested_at"`
		ExpiresAt   time.Time `json:"expires_at"`
	}{
		UserID:      event.UserID,
		Email:       event.Email,
		Token:       event.Token,
		RequestedAt: event.RequestedAt.UTC(),
		ExpiresAt:   event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, domain.EventPasswordResetRequested, event.UserID, event.RequestedAt, payload)
}

// PublishPasswordResetCompleted publishes auth.password.reset_completed events.
func (p *EventPublisher) PublishPasswordResetCompleted(ctx context.Context, event domain.PasswordResetCompletedEvent) error {
	payload := struct {
		UserID         string    `json:"user_id"`
		CompletedAt    time.Time `json:"completed_at"`
		SessionsClosed int       `json:"sessions_closed"`
	}{
		UserID:         event.UserID,
		CompletedAt:    event.CompletedAt.UTC(),
		SessionsClosed: event.SessionsClosed,
	}

	return p.publish(ctx, event.EventID, domain.EventPasswordResetCompleted, event.UserID, event.CompletedAt, payload)
}

// PublishSessionsRevoked publishes auth.sessions.revoked events.
func (p *EventPublisher) PublishSessionsRevoked(ctx context.Context, event domain.SessionsRevokedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		RevokedBy string    `json:"revoked_by"`
		Scope     string    `json:"scope"`
		Count     int       `json:"count"`
		RevokedAt time.Time `json:"revoked_at"`
	}{
		UserID:    event.UserID,
		RevokedBy: event.RevokedBy,
		Scope:     event.Scope,
		Count:     event.Count,
		RevokedAt: event.RevokedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, domain.EventSessionsRevoked, event.UserID, event.RevokedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
