package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
)

// SweepResult counts rows removed in one pass.
type SweepResult struct {
	RefreshTokens int
	ResetTokens   int
}

// Sweeper periodically deletes expired refresh and reset token rows.
type Sweeper struct {
	refresh  port.RefreshTokenRepository
	resets   port.PasswordResetTokenRepository
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewSweeper constructs a Sweeper. A non-positive interval defaults to one hour.
func NewSweeper(refresh port.RefreshTokenRepository, resets port.PasswordResetTokenRepository, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		refresh:  refresh,
		resets:   resets,
		interval: interval,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides the sweep cutoff clock.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	if now != nil {
		s.now = now
	}
	return s
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("token sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("token sweeper stopped")
			return
		case <-ticker.C:
			result, err := s.SweepOnce(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("token sweep failed", zap.Error(err))
				continue
			}
			if result.RefreshTokens > 0 || result.ResetTokens > 0 {
				s.logger.Info("expired tokens swept",
					zap.Int("refresh_tokens", result.RefreshTokens),
					zap.Int("reset_tokens", result.ResetTokens),
				)
			}
		}
	}
}

// SweepOnce deletes rows that expired before now. Both tables are attempted even if one fails.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	cutoff := s.now().UTC()

	var result SweepResult
	var errs []error

	n, err := s.refresh.DeleteExpired(ctx, cutoff)
	if err != nil {
		errs = append(errs, err)
	}
	result.RefreshTokens = n

	n, err = s.resets.DeleteExpired(ctx, cutoff)
	if err != nil {
		errs = append(errs, err)
	}
	result.ResetTokens = n

	return result, errors.Join(errs...)
}
