package reasoner

import (
	"context"
	"sync"
)

type mockStep struct {
	text string
	err  error
}

// Mock is a scripted Completer for tests. Responses and errors are consumed
// in queue order; every call is captured for inspection.
type Mock struct {
	mu    sync.Mutex
	steps []mockStep
	calls []Request
}

// NewMock creates an empty mock.
func NewMock() *Mock {
	return &Mock{}
}

// QueueResponse appends a successful response.
func (m *Mock) QueueResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{text: text})
}

// QueueError appends a failing response.
func (m *Mock) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{err: err})
}

// Complete pops the next scripted step. An empty queue is an invalid-request
// failure so misconfigured tests surface immediately.
func (m *Mock) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	if len(m.steps) == 0 {
		return "", NewCompletionError("mock", ErrorCodeInvalidRequest, "no queued response", nil)
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	if step.err != nil {
		return "", step.err
	}
	return step.text, nil
}

// Calls returns every captured request in order.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount reports the number of completed calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
