package port

import (
	"context"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
)

// Authorizer decides whether a caller may invoke an operation requiring one of the given roles.
type Authorizer interface {
	Authorize(ctx context.Context, caller domain.Caller, required []domain.Role) domain.AuthorizationDecision
}
