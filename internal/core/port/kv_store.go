package port

import (
	"context"
	"time"
)

// TTLStore is the shared key-value abstraction used for revocation markers and rate-limit state.
// Every key written through it expires on its own; absent and expired keys are indistinguishable.
type TTLStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key string, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	// Increment atomically adds one to the counter at key and returns the new value.
	// The ttl is applied only when the increment created the key.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}
