package port

import (
	"context"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
	PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishPasswordResetCompleted(ctx context.Context, event domain.PasswordResetCompletedEvent) error
	PublishSessionsRevoked(ctx context.Context, event domain.SessionsRevokedEvent) error
}
