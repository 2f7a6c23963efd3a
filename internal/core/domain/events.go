package domain

import "time"

// Event types published to the message bus.
const (
	EventLoginSucceeded         = "auth.login.succeeded"
	EventLoginFailed            = "auth.login.failed"
	EventUserRegistered         = "auth.user.registered"
	EventPasswordResetRequested = "auth.password.reset_requested"
	EventPasswordResetCompleted = "auth.password.reset_completed"
	EventSessionsRevoked        = "auth.sessions.revoked"
)

// LoginSucceededEvent represents the payload for auth.login.succeeded messages.
type LoginSucceededEvent struct {
	EventID    string
	UserID     string
	Username   string
	Role       Role
	ClientKey  string
	OccurredAt time.Time
}

// LoginFailedEvent represents the payload for auth.login.failed messages.
// UserID is empty when the username is unknown.
type LoginFailedEvent struct {
	EventID    string
	UserID     string
	Username   string
	Reason     string
	ClientKey  string
	OccurredAt time.Time
}

// UserRegisteredEvent represents the payload for auth.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Username     string
	Email        string
	Role         Role
	RegisteredAt time.Time
}

// PasswordResetRequestedEvent carries the raw reset token to the out-of-band delivery collaborator.
type PasswordResetRequestedEvent struct {
	EventID     string
	UserID      string
	Email       string
	Token       string
	RequestedAt time.Time
	ExpiresAt   time.Time
	ClientKey   string
}

// PasswordResetCompletedEvent represents the payload for auth.password.reset_completed messages.
type PasswordResetCompletedEvent struct {
	EventID        string
	UserID         string
	CompletedAt    time.Time
	SessionsClosed int
}

// SessionsRevokedEvent represents the payload for auth.sessions.revoked messages.
type SessionsRevokedEvent struct {
	EventID   string
	UserID    string
	RevokedBy string
	Scope     string
	Count     int
	RevokedAt time.Time
}

// Session revocation scopes.
const (
	RevocationScopeSingle = "single"
	RevocationScopeAll    = "all"
)
