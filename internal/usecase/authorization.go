package usecase

import (
	"context"
	"fmt"
	"slices"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
)

// RoleAuthorizer allows a caller whose role is one of the required roles.
// An empty role list only requires an authenticated caller.
type RoleAuthorizer struct{}

// NewRoleAuthorizer constructs a RoleAuthorizer.
func NewRoleAuthorizer() *RoleAuthorizer {
	return &RoleAuthorizer{}
}

func (RoleAuthorizer) Authorize(_ context.Context, caller domain.Caller, required []domain.Role) domain.AuthorizationDecision {
	if caller.IsAnonymous() {
		return domain.Deny("unauthenticated")
	}
	if len(required) == 0 || slices.Contains(required, caller.Role) {
		return domain.Allow()
	}
	return domain.Deny(fmt.Sprintf("role %s not permitted", caller.Role))
}

var _ port.Authorizer = (*RoleAuthorizer)(nil)
