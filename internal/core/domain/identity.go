package domain

import (
	"strings"
	"time"
)

// Role enumerates the account roles known to the school application.
type Role string

const (
	RoleStudent     Role = "STUDENT"
	RoleTeacher     Role = "TEACHER"
	RoleAdmin       Role = "ADMIN"
	RoleCoordinator Role = "COORDINATOR"
)

// ParseRole normalises textual input into a supported role.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleTeacher:
		return RoleTeacher, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleCoordinator:
		return RoleCoordinator, true
	default:
		return "", false
	}
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Principal mirrors the persisted representation of an account in the users table.
type Principal struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      string
	Role              Role
	Enabled           bool
	CreatedAt         time.Time
	PasswordChangedAt *time.Time
}

// Sanitized returns a copy without credential material.
func (p Principal) Sanitized() Principal {
	p.PasswordHash = ""
	return p
}

// Caller is the identity bound to a request after token validation.
type Caller struct {
	UserID   string
	Username string
	Email    string
	Role     Role
}

// IsAnonymous reports whether no authenticated identity is present.
func (c Caller) IsAnonymous() bool {
	return c.UserID == "" && c.Username == ""
}

// PasswordContext provides user inputs that strength checks should penalise.
type PasswordContext struct {
	Username string
	Email    string
}
