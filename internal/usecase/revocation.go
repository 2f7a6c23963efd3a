package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
)

const (
	revocationKeyPrefix = "token:blacklist:"
	revokedMarker       = "revoked"
)

// RevocationStore marks token ids as unusable until their natural expiry.
//
// Revocation is best-effort-immediate: a validation that started before Revoke
// returned may still observe the token as live.
type RevocationStore struct {
	store   port.TTLStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewRevocationStore wraps store. Every call is bounded by timeout.
func NewRevocationStore(store port.TTLStore, timeout time.Duration, log *zap.Logger) *RevocationStore {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RevocationStore{store: store, timeout: timeout, logger: log}
}

// Revoke records tokenID for remaining. Non-positive remaining is a no-op since the
// token can no longer validate anyway. Repeated calls overwrite the same key.
func (r *RevocationStore) Revoke(ctx context.Context, tokenID string, remaining time.Duration) error {
	if tokenID == "" || remaining <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.store.SetWithTTL(ctx, revocationKeyPrefix+tokenID, revokedMarker, remaining); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID was revoked. When the store cannot answer it
// returns true together with the error.
func (r *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	exists, err := r.store.Exists(ctx, revocationKeyPrefix+tokenID)
	if err != nil {
		return true, fmt.Errorf("check revocation: %w", err)
	}
	return exists, nil
}
