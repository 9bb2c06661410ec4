// Package reasoner isolates the external language service behind a narrow
// interface. Stages use it only to phrase patient-facing text from
// rule-derived facts; classification never depends on it, so the pipeline
// behaves identically when no provider is configured.
package reasoner

import "context"

// Request describes one completion call.
type Request struct {
	// System sets the system instruction, if any.
	System string
	// Prompt is the user-visible prompt to complete.
	Prompt string
	// MaxTokens bounds the response length (0 = provider default).
	MaxTokens int
	// Temperature controls sampling randomness.
	Temperature float64
}

// Completer produces free text for a prompt under constraints.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
