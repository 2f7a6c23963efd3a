package domain

import "strings"

// DegradationPolicyMode enumerates supported behaviours when a backing store cannot answer.
type DegradationPolicyMode string

const (
	// DegradationPolicyModeLenient lets the guarded operation proceed when the store is unavailable (fail-open).
	DegradationPolicyModeLenient DegradationPolicyMode = "lenient"
	// DegradationPolicyModeStrict rejects the guarded operation when the store is unavailable (fail-closed).
	DegradationPolicyModeStrict DegradationPolicyMode = "strict"
)

// DegradationPolicy centralises how a check responds when its state cannot be read.
type DegradationPolicy struct {
	mode DegradationPolicyMode
}

// NewDegradationPolicy constructs a policy with the provided mode, defaulting to lenient when unspecified.
func NewDegradationPolicy(mode DegradationPolicyMode) DegradationPolicy {
	if mode != DegradationPolicyModeStrict {
		mode = DegradationPolicyModeLenient
	}
	return DegradationPolicy{mode: mode}
}

// ParseDegradationPolicyMode normalises textual input into a supported policy mode.
func ParseDegradationPolicyMode(value string) DegradationPolicyMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DegradationPolicyModeStrict):
		return DegradationPolicyModeStrict
	default:
		return DegradationPolicyModeLenient
	}
}

// Mode returns the underlying policy mode.
func (p DegradationPolicy) Mode() DegradationPolicyMode {
	if p.mode == "" {
		return DegradationPolicyModeLenient
	}
	return p.mode
}

// IsStrict indicates whether the policy rejects degraded states.
func (p DegradationPolicy) IsStrict() bool {
	return p.mode == DegradationPolicyModeStrict
}

// AllowsFallback determines if the policy permits continuing without the store's answer.
func (p DegradationPolicy) AllowsFallback() bool {
	return !p.IsStrict()
}
