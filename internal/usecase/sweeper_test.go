package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
)

func TestSweeper_SweepOnce(t *testing.T) {
	clock := newManualClock()
	refresh := newFakeRefreshRepo(clock.Now)
	resets := newFakeResetRepo(nil)
	now := clock.Now()

	refresh.records["h1"] = domain.RefreshTokenRecord{ID: "r1", UserID: "u", TokenHash: "h1", ExpiresAt: now.Add(-time.Minute)}
	refresh.records["h2"] = domain.RefreshTokenRecord{ID: "r2", UserID: "u", TokenHash: "h2", ExpiresAt: now.Add(time.Hour)}
	resets.tokens["p1"] = domain.PasswordResetToken{ID: "p1", UserID: "u", TokenHash: "x", ExpiresAt: now}
	resets.tokens["p2"] = domain.PasswordResetToken{ID: "p2", UserID: "u", TokenHash: "y", ExpiresAt: now.Add(time.Minute)}

	sweeper := NewSweeper(refresh, resets, time.Hour, nil).WithClock(clock.Now)
	result, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce returned error: %v", err)
	}
	if result.RefreshTokens != 1 || result.ResetTokens != 1 {
		t.Fatalf("unexpected sweep result: %+v", result)
	}
	if len(refresh.records) != 1 || resets.len() != 1 {
		t.Fatalf("expected live rows to survive")
	}
}

func TestSweeper_ContinuesPastFailure(t *testing.T) {
	clock := newManualClock()
	refresh := newFakeRefreshRepo(clock.Now)
	refresh.err = errors.New("db down")
	resets := newFakeResetRepo(nil)
	resets.tokens["p1"] = domain.PasswordResetToken{ID: "p1", ExpiresAt: clock.Now().Add(-time.Second)}

	result, err := NewSweeper(refresh, resets, time.Hour, nil).WithClock(clock.Now).SweepOnce(context.Background())
	if err == nil {
		t.Fatalf("expected refresh failure to be reported")
	}
	if result.ResetTokens != 1 {
		t.Fatalf("expected reset sweep to run despite refresh failure, got %+v", result)
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := newManualClock()
	sweeper := NewSweeper(newFakeRefreshRepo(clock.Now), newFakeResetRepo(nil), 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop after cancel")
	}
}
