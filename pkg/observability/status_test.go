package observability

import (
	"context"
	"errors"
	"testing"
)

func TestStageRegistry_SnapshotOrder(t *testing.T) {
	r := NewStageRegistry()
	for _, name := range []string{"security", "intake", "triage"} {
		r.Register(name)
	}

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot() length = %d, want 3", len(snap))
	}
	want := []string{"security", "intake", "triage"}
	for i, name := range want {
		if snap[i].Name != name {
			t.Errorf("Snapshot()[%d].Name = %q, want %q", i, snap[i].Name, name)
		}
		if !snap[i].Available {
			t.Errorf("Snapshot()[%d].Available = false, want true", i)
		}
	}
}

func TestStageRegistry_RecordInvocation(t *testing.T) {
	r := NewStageRegistry()
	r.Register("triage")

	r.RecordInvocation("triage", "ok")
	r.RecordInvocation("triage", "fallback")
	r.RecordInvocation("triage", "ok")

	snap := r.Snapshot()
	if snap[0].Invocations != 3 {
		t.Errorf("Invocations = %d, want 3", snap[0].Invocations)
	}
	if snap[0].Fallbacks != 1 {
		t.Errorf("Fallbacks = %d, want 1", snap[0].Fallbacks)
	}
	if snap[0].LastOutcome != "ok" {
		t.Errorf("LastOutcome = %q, want ok", snap[0].LastOutcome)
	}
	if snap[0].LastInvoked.IsZero() {
		t.Error("LastInvoked should be set")
	}
}

func TestStageRegistry_UnregisteredStageIsCreated(t *testing.T) {
	r := NewStageRegistry()

	r.RecordInvocation("risk", "ok")

	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].Name != "risk" {
		t.Fatalf("Snapshot() = %+v, want single risk entry", snap)
	}
}

var errCheckFailed = errors.New("check failed")

func TestHealthChecker_CriticalFailureIsUnhealthy(t *testing.T) {
	hc := &HealthChecker{checks: make(map[string]*HealthCheck)}
	hc.RegisterCheck(SessionBackendCheck(func(ctx context.Context) error {
		return errCheckFailed
	}))

	resp := hc.Check(context.Background())
	if resp.Status != HealthStatusUnhealthy {
		t.Errorf("Status = %q, want unhealthy", resp.Status)
	}
}

func TestHealthChecker_NonCriticalFailureIsDegraded(t *testing.T) {
	hc := &HealthChecker{checks: make(map[string]*HealthCheck)}
	hc.RegisterCheck(ReasonerCheck(func(ctx context.Context) error {
		return errCheckFailed
	}))

	resp := hc.Check(context.Background())
	if resp.Status != HealthStatusDegraded {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
}

func TestHealthChecker_AllHealthy(t *testing.T) {
	hc := &HealthChecker{checks: make(map[string]*HealthCheck)}
	hc.RegisterCheck(SessionBackendCheck(func(ctx context.Context) error {
		return nil
	}))

	resp := hc.Check(context.Background())
	if resp.Status != HealthStatusHealthy {
		t.Errorf("Status = %q, want healthy", resp.Status)
	}
	if len(resp.Checks) != 1 {
		t.Errorf("Checks length = %d, want 1", len(resp.Checks))
	}
}
