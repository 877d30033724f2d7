package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"RiskPulse/pkg/config"
)

func TestPruneOnceUsesMaxAge(t *testing.T) {
	hist := &memHistory{}
	r := NewHistoryRetention(hist, config.RetentionConfig{Schedule: "@every 1h", MaxAge: 24 * time.Hour}, nil)
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	if err := r.PruneOnce(context.Background()); err != nil {
		t.Fatalf("PruneOnce: %v", err)
	}
	if len(hist.pruned) != 1 || !hist.pruned[0].Equal(now.Add(-24*time.Hour)) {
		t.Fatalf("pruned = %v", hist.pruned)
	}

	hist.err = errors.New("table missing")
	if err := r.PruneOnce(context.Background()); !errors.Is(err, hist.err) {
		t.Fatalf("err = %v", err)
	}
}

func TestRetentionSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewHistoryRetention(&memHistory{}, config.RetentionConfig{Schedule: "@every 1h", MaxAge: time.Hour}, nil)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !r.IsRunning() {
		t.Fatalf("scheduler not running")
	}
	if next := r.NextRun(); next == nil || !next.After(time.Now()) {
		t.Fatalf("next run = %v", next)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for r.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler did not stop on cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRetentionRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	if err := NewHistoryRetention(&memHistory{}, config.RetentionConfig{Schedule: "every tuesday", MaxAge: time.Hour}, nil).Start(ctx); err == nil {
		t.Fatalf("expected schedule error")
	}
	if err := NewHistoryRetention(&memHistory{}, config.RetentionConfig{Schedule: "@daily"}, nil).Start(ctx); err == nil {
		t.Fatalf("expected max age error")
	}
	r := NewHistoryRetention(&memHistory{}, config.RetentionConfig{}, nil)
	if err := r.Start(ctx); err != nil || r.IsRunning() {
		t.Fatalf("empty schedule: err=%v running=%v", err, r.IsRunning())
	}
}
