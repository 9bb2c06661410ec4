package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSweeper_EvictsIdleSessions(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	stale, err := m.GetOrCreate(ctx, "stale", "")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	stale.UpdatedAt = time.Now().UTC().Add(-2 * time.Hour)
	if err := m.backend.Save(ctx, stale); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := m.GetOrCreate(ctx, "fresh", ""); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	sw, err := NewSweeper(m, "@every 10m", time.Hour, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}
	sw.Sweep(ctx)

	if _, err := m.Get(ctx, "stale"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("stale session should be evicted, got %v", err)
	}
	if _, err := m.Get(ctx, "fresh"); err != nil {
		t.Errorf("fresh session should survive, got %v", err)
	}
}

func TestSweeper_DisabledWhenMaxIdleZero(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s, err := m.GetOrCreate(ctx, "kept", "")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	s.UpdatedAt = time.Now().UTC().Add(-24 * time.Hour)
	if err := m.backend.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	sw, err := NewSweeper(m, "@every 10m", 0, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}
	sw.Start()
	sw.Stop()
	sw.Sweep(ctx)

	if _, err := m.Get(ctx, "kept"); err != nil {
		t.Errorf("session should survive with sweeping disabled, got %v", err)
	}
}

func TestSweeper_InvalidSchedule(t *testing.T) {
	m := newTestManager(t)

	if _, err := NewSweeper(m, "not a schedule", time.Hour, nil); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}
