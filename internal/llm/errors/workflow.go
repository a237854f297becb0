package errors

import (
	"fmt"
)

// WorkflowError is the classified form of any LLM-layer failure.
// Activities use it to decide between retryable and non-retryable
// application errors.
type WorkflowError struct {
	Type      ErrorType      `json:"type"`      // Error classification
	Message   string         `json:"message"`   // Human-readable message
	Code      string         `json:"code"`      // Stable code for callers
	Retryable bool           `json:"retryable"` // Whether to retry
	Details   map[string]any `json:"details"`   // Additional context
	Cause     error          `json:"-"`         // Underlying error
}

// Error returns formatted error string with type and code context.
func (e *WorkflowError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As compatibility.
func (e *WorkflowError) Unwrap() error {
	return e.Cause
}
