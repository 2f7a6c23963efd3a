package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appLogger "github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/logger"
)

const (
	RateLimitProblemType  = "https://school.example.com/errors/rate-limit-exceeded"
	RateLimitProblemTitle = "Rate Limit Exceeded"

	idleLimiterSweep = 5 * time.Minute
)

// ProblemDetails represents an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail"`
	Instance   string         `json:"instance"`
	RetryAfter int            `json:"retry_after"`
	TraceID    string         `json:"trace_id,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// AbortRateLimited writes the 429 problem document together with the Retry-After header.
func AbortRateLimited(c *gin.Context, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	minutes := (seconds + 59) / 60

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       RateLimitProblemType,
		Title:      RateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many attempts. Try again in %d minute(s).", minutes),
		Instance:   instance,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
		Extensions: map[string]any{"retry_after_minutes": minutes},
	})
}

// ThrottleConfig defines a token bucket refilled at RequestsPerWindow per Window.
type ThrottleConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// IdentifierFunc extracts the identifier used to scope throttling (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// Throttle keeps one token bucket per identifier.
type Throttle struct {
	cfg        ThrottleConfig
	identifier IdentifierFunc
	logger     *zap.Logger
	now        func() time.Time

	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

// NewThrottle builds a per-identifier request throttle. A nil identifier uses the client IP.
func NewThrottle(cfg ThrottleConfig, identifier IdentifierFunc, logger *zap.Logger) *Throttle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if identifier == nil {
		identifier = ClientIPIdentifier()
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerWindow
	}

	return &Throttle{
		cfg:         cfg,
		identifier:  identifier,
		logger:      logger,
		now:         time.Now,
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (t *Throttle) WithClock(now func() time.Time) *Throttle {
	if now != nil {
		t.now = now
		t.lastCleanup = now()
	}
	return t
}

func (t *Throttle) enabled() bool {
	return t != nil && t.cfg.RequestsPerWindow > 0 && t.cfg.Window > 0
}

func (t *Throttle) limiter(key string, now time.Time) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastCleanup) >= idleLimiterSweep {
		t.lastCleanup = now
		for k, l := range t.limiters {
			if l.TokensAt(now) >= float64(t.cfg.Burst) {
				delete(t.limiters, k)
			}
		}
	}

	l, ok := t.limiters[key]
	if !ok {
		every := rate.Limit(float64(t.cfg.RequestsPerWindow) / t.cfg.Window.Seconds())
		l = rate.NewLimiter(every, t.cfg.Burst)
		t.limiters[key] = l
	}
	return l
}

// Handler returns a Gin middleware enforcing the throttle.
func (t *Throttle) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.enabled() {
			c.Next()
			return
		}

		key, ok := t.identifier(c)
		if !ok {
			appLogger.WithContext(c.Request.Context(), t.logger).Warn("throttle: unable to extract key, allowing request")
			c.Next()
			return
		}

		now := t.now()
		l := t.limiter(key, now)
		if l.AllowN(now, 1) {
			c.Next()
			return
		}

		r := l.ReserveN(now, 1)
		delay := r.DelayFrom(now)
		r.CancelAt(now)

		appLogger.WithContext(c.Request.Context(), t.logger).Warn("request throttled",
			zap.String("client_ip", appLogger.MaskIP(key)),
			zap.String("path", c.Request.URL.Path),
			zap.Duration("retry_after", delay),
		)

		c.Header("X-RateLimit-Limit", strconv.Itoa(t.cfg.RequestsPerWindow))
		c.Header("X-RateLimit-Window", t.cfg.Window.String())
		AbortRateLimited(c, delay)
	}
}
