package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/security"
)

func TestTokenValidator_AccessTokenLifecycle(t *testing.T) {
	h := newHarness(t)
	alice := h.seedAlice(t)

	token, issued, err := h.issuer.IssueAccessToken(alice, false)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	claims, err := h.validator.ValidateAccess(context.Background(), token, "alice")
	if err != nil {
		t.Fatalf("ValidateAccess right after issuance: %v", err)
	}
	if claims.ID != issued.ID || claims.UserID != alice.ID || claims.Role != alice.Role || claims.Email != alice.Email {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	h.clock.Advance(15*time.Minute - time.Second)
	if _, err := h.validator.ValidateAccess(context.Background(), token, "alice"); err != nil {
		t.Fatalf("token should still be valid one second before expiry: %v", err)
	}

	h.clock.Advance(time.Second)
	_, err = h.validator.ValidateAccess(context.Background(), token, "alice")
	if !errors.Is(err, ErrInvalidToken) || !errors.Is(err, security.ErrExpiredToken) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestTokenValidator_RememberMeExtendsLifetime(t *testing.T) {
	h := newHarness(t)
	alice := h.seedAlice(t)

	token, claims, err := h.issuer.IssueAccessToken(alice, true)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != 105*time.Minute {
		t.Fatalf("expected 105m lifetime, got %v", got)
	}

	h.clock.Advance(time.Hour)
	if _, err := h.validator.Authenticate(context.Background(), token); err != nil {
		t.Fatalf("remember-me token should be valid after an hour: %v", err)
	}
}

func TestTokenValidator_Rejections(t *testing.T) {
	h := newHarness(t)
	alice := h.seedAlice(t)
	ctx := context.Background()

	access, accessClaims, err := h.issuer.IssueAccessToken(alice, false)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	refresh, _, err := h.issuer.IssueRefreshToken(ctx, alice)
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	if _, err := h.validator.ValidateAccess(ctx, access, "bob"); !errors.Is(err, ErrSubjectMismatch) {
		t.Fatalf("expected subject mismatch, got %v", err)
	}
	if _, err := h.validator.ValidateAccess(ctx, access, "ALICE"); !errors.Is(err, ErrSubjectMismatch) {
		t.Fatalf("expected case-different subject to be rejected, got %v", err)
	}
	if _, err := h.validator.ValidateAccess(ctx, access, " alice "); err != nil {
		t.Fatalf("expected surrounding whitespace to be ignored, got %v", err)
	}
	if _, err := h.validator.ValidateAccess(ctx, refresh, "alice"); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("expected type mismatch for refresh token, got %v", err)
	}
	if _, err := h.validator.Authenticate(ctx, "garbage"); !errors.Is(err, security.ErrMalformedToken) {
		t.Fatalf("expected malformed token, got %v", err)
	}

	if err := h.revocations.Revoke(ctx, accessClaims.ID, accessClaims.Remaining(h.clock.Now())); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	_, err = h.validator.ValidateAccess(ctx, access, "alice")
	if !errors.Is(err, ErrInvalidToken) || !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked token, got %v", err)
	}
}

func TestTokenValidator_FailsClosedWhenStoreUnavailable(t *testing.T) {
	h := newHarness(t)
	alice := h.seedAlice(t)

	token, _, err := h.issuer.IssueAccessToken(alice, false)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	validator := NewTokenValidator(h.codec, NewRevocationStore(failingStore{}, time.Second, nil), nil)
	if _, err := validator.Authenticate(context.Background(), token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected store failure to read as revoked, got %v", err)
	}
}

func TestRevocationStore_IdempotentAndBounded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := h.revocations.Revoke(ctx, "jti-1", time.Minute); err != nil {
			t.Fatalf("Revoke #%d: %v", i+1, err)
		}
	}
	revoked, err := h.revocations.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected jti-1 revoked, got %v, %v", revoked, err)
	}
	if h.kv.Len() != 1 {
		t.Fatalf("expected a single revocation entry, got %d", h.kv.Len())
	}

	if err := h.revocations.Revoke(ctx, "jti-2", 0); err != nil {
		t.Fatalf("Revoke with no remaining lifetime: %v", err)
	}
	if revoked, _ := h.revocations.IsRevoked(ctx, "jti-2"); revoked {
		t.Fatalf("expected non-positive remaining to be a no-op")
	}

	h.clock.Advance(time.Minute)
	if revoked, _ := h.revocations.IsRevoked(ctx, "jti-1"); revoked {
		t.Fatalf("expected revocation entry to expire with the token")
	}
}
