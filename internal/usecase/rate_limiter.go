package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/logger"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	blockedKeySuffix   = ":blocked"

	defaultMaxAttempts   = 5
	defaultAttemptWindow = 15 * time.Minute
	defaultBlockDuration = 15 * time.Minute
	defaultStoreTimeout  = 500 * time.Millisecond
)

var (
	// ErrRateLimitExceeded matches every *RateLimitExceededError via errors.Is.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrRateLimiterUnavailable is returned under the strict policy when the store cannot answer.
	ErrRateLimiterUnavailable = errors.New("rate limiter unavailable")
)

// RateLimitExceededError reports a blocked client key and how long the block lasts.
type RateLimitExceededError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("too many attempts, try again in %d minute(s)", e.RemainingMinutes())
}

// RemainingMinutes rounds the remaining block up to whole minutes, never below one.
func (e *RateLimitExceededError) RemainingMinutes() int {
	minutes := int((e.RetryAfter + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		return 1
	}
	return minutes
}

func (e *RateLimitExceededError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// RateLimitConfig is the single source of limiter thresholds.
type RateLimitConfig struct {
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
	StoreTimeout  time.Duration
	Policy        domain.DegradationPolicy
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Window <= 0 {
		c.Window = defaultAttemptWindow
	}
	if c.BlockDuration <= 0 {
		c.BlockDuration = defaultBlockDuration
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaultStoreTimeout
	}
	return c
}

// RateLimiter counts attempts per client key in a shared TTL store and blocks keys
// that exceed MaxAttempts within Window.
type RateLimiter struct {
	store  port.TTLStore
	cfg    RateLimitConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter constructs a limiter. Zero config fields fall back to 5 attempts per 15 minutes.
func NewRateLimiter(store port.TTLStore, cfg RateLimitConfig, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the limiter clock.
func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Config returns the effective configuration.
func (l *RateLimiter) Config() RateLimitConfig {
	return l.cfg
}

// CheckAndRecord fails with *RateLimitExceededError while clientKey is blocked, otherwise
// records one attempt. The attempt that pushes the count past MaxAttempts starts a block.
func (l *RateLimiter) CheckAndRecord(ctx context.Context, clientKey string) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	defer cancel()

	counterKey, blockedKey := rateLimitKeys(clientKey)
	now := l.now()

	startedAt, blocked, err := l.store.Get(ctx, blockedKey)
	if err != nil {
		return l.degrade(ctx, clientKey, "read block marker", err)
	}
	if blocked {
		if retryAfter := l.blockRemaining(startedAt, now); retryAfter > 0 {
			return &RateLimitExceededError{Key: clientKey, RetryAfter: retryAfter}
		}
	}

	count, err := l.store.Increment(ctx, counterKey, l.cfg.Window)
	if err != nil {
		return l.degrade(ctx, clientKey, "increment attempts", err)
	}
	if count <= int64(l.cfg.MaxAttempts) {
		return nil
	}

	if err := l.store.SetWithTTL(ctx, blockedKey, strconv.FormatInt(now.UnixNano(), 10), l.cfg.BlockDuration); err != nil {
		logger.WithContext(ctx, l.logger).Warn("rate limit block marker write failed",
			zap.String("client", logger.MaskClientKey(clientKey)), zap.Error(err))
	}
	if err := l.store.Delete(ctx, counterKey); err != nil {
		logger.WithContext(ctx, l.logger).Warn("rate limit counter clear failed",
			zap.String("client", logger.MaskClientKey(clientKey)), zap.Error(err))
	}

	logger.WithContext(ctx, l.logger).Info("client key blocked",
		zap.String("client", logger.MaskClientKey(clientKey)),
		zap.Int64("attempts", count),
		zap.Duration("block", l.cfg.BlockDuration),
	)
	return &RateLimitExceededError{Key: clientKey, RetryAfter: l.cfg.BlockDuration}
}

// Reset clears the attempt counter and any block for clientKey.
func (l *RateLimiter) Reset(ctx context.Context, clientKey string) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	defer cancel()

	counterKey, blockedKey := rateLimitKeys(clientKey)
	if err := l.store.Delete(ctx, counterKey, blockedKey); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}

func (l *RateLimiter) blockRemaining(startedAt string, now time.Time) time.Duration {
	nanos, err := strconv.ParseInt(startedAt, 10, 64)
	if err != nil {
		// unreadable marker: the key still exists, so honour a full block
		return l.cfg.BlockDuration
	}
	until := time.Unix(0, nanos).Add(l.cfg.BlockDuration)
	if !until.After(now) {
		return 0
	}
	return until.Sub(now)
}

func (l *RateLimiter) degrade(ctx context.Context, clientKey, op string, err error) error {
	logger.WithContext(ctx, l.logger).Warn("rate limit store unavailable",
		zap.String("op", op),
		zap.String("client", logger.MaskClientKey(clientKey)),
		zap.String("policy", string(l.cfg.Policy.Mode())),
		zap.Error(err),
	)
	if l.cfg.Policy.AllowsFallback() {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrRateLimiterUnavailable, op, err)
}

func rateLimitKeys(clientKey string) (string, string) {
	if clientKey == "" {
		clientKey = "unknown"
	}
	counter := rateLimitKeyPrefix + clientKey
	return counter, counter + blockedKeySuffix
}
