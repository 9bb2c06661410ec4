package reasoner

import (
	"errors"
	"fmt"
)

// ErrorCode classifies completion failures.
type ErrorCode string

const (
	ErrorCodeRateLimit      ErrorCode = "rate_limited"
	ErrorCodeServerError    ErrorCode = "server_error"
	ErrorCodeTimeout        ErrorCode = "timeout"
	ErrorCodeInvalidRequest ErrorCode = "invalid_request"
	ErrorCodeAuthentication ErrorCode = "authentication"
	ErrorCodeUnknown        ErrorCode = "unknown"
)

// CompletionError is the typed failure every adapter returns.
type CompletionError struct {
	Provider  string
	Code      ErrorCode
	Message   string
	Retryable bool
	Err       error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s completion failed [%s]: %s", e.Provider, e.Code, e.Message)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// NewCompletionError builds a CompletionError, deriving retryability from the
// code: rate limits, server errors, and timeouts are retryable.
func NewCompletionError(provider string, code ErrorCode, message string, err error) *CompletionError {
	return &CompletionError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Retryable: code == ErrorCodeRateLimit || code == ErrorCodeServerError || code == ErrorCodeTimeout,
		Err:       err,
	}
}

// IsRetryable reports whether err is a retryable CompletionError.
func IsRetryable(err error) bool {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}
