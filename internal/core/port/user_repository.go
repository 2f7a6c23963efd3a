package port

import (
	"context"
	"time"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.Principal) error
	GetByID(ctx context.Context, id string) (*domain.Principal, error)
	GetByUsername(ctx context.Context, username string) (*domain.Principal, error)
	GetByEmail(ctx context.Context, email string) (*domain.Principal, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
}
