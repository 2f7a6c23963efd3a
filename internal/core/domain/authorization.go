package domain

// AuthorizationDecision is the outcome of a policy check.
type AuthorizationDecision struct {
	Allowed bool
	Reason  string
}

// Allow builds a permitting decision.
func Allow() AuthorizationDecision {
	return AuthorizationDecision{Allowed: true}
}

// Deny builds a rejecting decision with a reason suitable for logs.
func Deny(reason string) AuthorizationDecision {
	return AuthorizationDecision{Allowed: false, Reason: reason}
}
