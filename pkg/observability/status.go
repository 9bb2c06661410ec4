package observability

import (
	"sync"
	"time"
)

// StageInfo describes the most recent activity of one pipeline stage.
type StageInfo struct {
	Name        string    `json:"name"`
	Available   bool      `json:"available"`
	LastInvoked time.Time `json:"last_invoked,omitempty"`
	LastOutcome string    `json:"last_outcome,omitempty"`
	Invocations uint64    `json:"invocations"`
	Fallbacks   uint64    `json:"fallbacks"`
}

// StageRegistry tracks per-stage invocation metadata for the agent status
// endpoint.
type StageRegistry struct {
	mu     sync.RWMutex
	stages map[string]*StageInfo
	order  []string
}

// NewStageRegistry creates an empty registry.
func NewStageRegistry() *StageRegistry {
	return &StageRegistry{
		stages: make(map[string]*StageInfo),
	}
}

// Register adds a stage. Registration order is preserved in snapshots.
func (r *StageRegistry) Register(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stages[name]; ok {
		return
	}
	r.stages[name] = &StageInfo{Name: name, Available: true}
	r.order = append(r.order, name)
}

// RecordInvocation records one stage evaluation and its outcome
// ("ok", "fallback", or "error").
func (r *StageRegistry) RecordInvocation(name, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.stages[name]
	if !ok {
		info = &StageInfo{Name: name, Available: true}
		r.stages[name] = info
		r.order = append(r.order, name)
	}
	info.LastInvoked = time.Now().UTC()
	info.LastOutcome = outcome
	info.Invocations++
	if outcome == "fallback" {
		info.Fallbacks++
	}
}

// Snapshot returns stage info in registration order.
func (r *StageRegistry) Snapshot() []StageInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StageInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.stages[name])
	}
	return out
}
