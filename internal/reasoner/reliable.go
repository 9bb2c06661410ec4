package reasoner

import (
	"context"
	"errors"
	"time"

	"github.com/vinodyk/patient-appointments/pkg/observability"
)

// DefaultTimeout bounds one completion attempt.
const DefaultTimeout = 30 * time.Second

// Reliable wraps a Completer with a per-call timeout and a single retry on
// retryable failures. This is the only retry policy in the system; callers
// that still fail fall back to rule templates.
type Reliable struct {
	inner    Completer
	provider string
	timeout  time.Duration
}

// NewReliable wraps inner. The provider name labels metrics and timeout
// errors; a non-positive timeout falls back to DefaultTimeout.
func NewReliable(inner Completer, provider string, timeout time.Duration) *Reliable {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reliable{
		inner:    inner,
		provider: provider,
		timeout:  timeout,
	}
}

// Complete runs one attempt, retrying exactly once when the failure is
// retryable and the parent context still lives.
func (r *Reliable) Complete(ctx context.Context, req Request) (string, error) {
	text, err := r.attempt(ctx, req)
	if err == nil {
		observability.RecordReasonerRequest(r.provider, "success")
		return text, nil
	}

	if !IsRetryable(err) || ctx.Err() != nil {
		observability.RecordReasonerRequest(r.provider, "error")
		return "", err
	}

	text, retryErr := r.attempt(ctx, req)
	if retryErr != nil {
		observability.RecordReasonerRequest(r.provider, "error")
		return "", retryErr
	}
	observability.RecordReasonerRequest(r.provider, "success")
	return text, nil
}

func (r *Reliable) attempt(ctx context.Context, req Request) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.inner.Complete(attemptCtx, req)
	if err == nil {
		return text, nil
	}

	// Adapters normally return CompletionError already; normalize anything
	// else so retryability stays decidable.
	var ce *CompletionError
	if errors.As(err, &ce) {
		return "", err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "", NewCompletionError(r.provider, ErrorCodeTimeout, "completion timed out", err)
	}
	return "", NewCompletionError(r.provider, ErrorCodeUnknown, err.Error(), err)
}
