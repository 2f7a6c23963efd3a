package security

import (
	"strings"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
)

const maxPasswordBytes = 128

// PasswordPolicySettings tunes the complexity policy.
type PasswordPolicySettings struct {
	MinLength           int
	MinCharacterClasses int
	MinStrengthScore    int
}

// DefaultPasswordPolicySettings returns the service defaults.
func DefaultPasswordPolicySettings() PasswordPolicySettings {
	return PasswordPolicySettings{
		MinLength:           8,
		MinCharacterClasses: 3,
		MinStrengthScore:    1,
	}
}

// PasswordPolicy adapts the rule validator to port.PasswordPolicyValidator.
// The username and email are fed to zxcvbn so passwords derived from them score lower.
type PasswordPolicy struct {
	settings PasswordPolicySettings
}

// NewPasswordPolicy builds a policy from settings.
func NewPasswordPolicy(settings PasswordPolicySettings) *PasswordPolicy {
	return &PasswordPolicy{settings: settings}
}

// Validate checks password against the policy.
func (p *PasswordPolicy) Validate(password string, ctx domain.PasswordContext) error {
	inputs := make([]string, 0, 2)
	if username := strings.TrimSpace(ctx.Username); username != "" {
		inputs = append(inputs, username)
	}
	if email := strings.TrimSpace(ctx.Email); email != "" {
		inputs = append(inputs, email)
	}

	return NewPasswordValidator(
		MinLengthRule(p.settings.MinLength),
		MaxLengthRule(maxPasswordBytes),
		RequireCharacterClassesRule(p.settings.MinCharacterClasses),
		RequirePasswordStrengthRule(p.settings.MinStrengthScore, inputs...),
	).Validate(password)
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)
