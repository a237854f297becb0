package errors

import (
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/go-themis/internal/domain"
)

// ErrorType categorizes LLM operation failures for retry classification.
// Types determine whether operations should be retried, separating transient
// failures from permanent ones.
type ErrorType string

const (
	// ErrorTypeTimeout indicates request timeout or deadline exceeded (retryable).
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeRateLimit indicates rate limit exceeded (retryable).
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeNetwork indicates network connectivity issues (retryable).
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeProvider indicates provider service unavailable (retryable).
	ErrorTypeProvider ErrorType = "provider_unavailable"

	// ErrorTypeBudget indicates a token budget would be exceeded.
	ErrorTypeBudget ErrorType = "budget_exceeded"

	// ErrorTypeValidation indicates a malformed request or response.
	ErrorTypeValidation ErrorType = "validation_failed"

	// ErrorTypeContent indicates content blocked by safety filters.
	ErrorTypeContent ErrorType = "content_filtered"

	// ErrorTypeAuth indicates authentication failed.
	ErrorTypeAuth ErrorType = "authentication"

	// ErrorTypePermission indicates insufficient permissions.
	ErrorTypePermission ErrorType = "permission_denied"

	// ErrorTypeQuota indicates account quota exceeded.
	ErrorTypeQuota ErrorType = "quota_exceeded"

	// ErrorTypeUnsupported indicates the provider lacks the requested capability.
	ErrorTypeUnsupported ErrorType = "unsupported_capability"

	// ErrorTypeTemplate indicates a prompt could not be rendered.
	ErrorTypeTemplate ErrorType = "template"

	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = "unknown"
)

// Common LLM operation errors.
var (
	// ErrProviderUnavailable indicates the provider service is down or unreachable.
	ErrProviderUnavailable = errors.New("provider service unavailable")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrUnknownProvider indicates an unknown or unsupported provider.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrInvalidResponse indicates the provider returned an invalid response.
	ErrInvalidResponse = errors.New("invalid provider response")

	// ErrSchemaValidation indicates a parsed LLM response violated its schema.
	ErrSchemaValidation = errors.New("response schema validation failed")

	// ErrMaxRetriesExceeded indicates maximum retry attempts exceeded.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// ErrUnsupportedCapability indicates the provider cannot serve the operation.
	ErrUnsupportedCapability = errors.New("unsupported capability")

	// ErrTemplateNotFound indicates no prompt template matched the id/version.
	ErrTemplateNotFound = errors.New("prompt template not found")

	// ErrUnresolvedVariable indicates a placeholder survived rendering.
	ErrUnresolvedVariable = errors.New("unresolved template variable")
)

// ProviderError captures structured error responses from LLM providers.
// Includes HTTP status codes, provider-specific error codes, and retry timing.
type ProviderError struct {
	Provider   string    `json:"provider"`    // Provider name
	StatusCode int       `json:"status_code"` // HTTP status code, zero for transport failures
	Message    string    `json:"message"`     // Error message
	Code       string    `json:"code"`        // Provider error code
	Type       ErrorType `json:"type"`        // Classified error type
	RetryAfter int       `json:"retry_after"` // Retry-After header value in seconds
	Cause      error     `json:"-"`
}

// Error returns formatted provider error with status code context.
func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap returns the underlying transport error, if any.
func (e *ProviderError) Unwrap() error { return e.Cause }

// IsRetryable determines if the provider error warrants a retry attempt.
// Typed classification wins; unknown types fall back to message patterns.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeNetwork, ErrorTypeProvider:
		return true
	case ErrorTypeUnknown, "":
		return matchesRetryablePattern(e.Message)
	default:
		return false
	}
}

// GetRetryAfter implements retry.AfterProvider.
func (e *ProviderError) GetRetryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}
	return 0
}

// RateLimitError reports a local or remote rate limit.
type RateLimitError struct {
	Provider   string `json:"provider"`
	RetryAfter int    `json:"retry_after"` // Seconds to wait before retry
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	LocalLimit bool   `json:"local_limit"` // Whether this is a local limit
}

// Error returns formatted rate limit error with retry guidance.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded for %s, retry after %d seconds", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded for %s", e.Provider)
}

// GetRetryAfter implements retry.AfterProvider.
func (e *RateLimitError) GetRetryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}
	return 0
}

// ValidationError captures input or response validation failures.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Invalid value
	Message string `json:"message"` // Validation message
	Cause   error  `json:"-"`
}

// Error returns formatted validation error with field-specific context.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error { return e.Cause }

// NewSchemaError wraps a response decoding failure as a ValidationError.
func NewSchemaError(task, reason string) *ValidationError {
	return &ValidationError{
		Field:   task,
		Message: reason,
		Cause:   ErrSchemaValidation,
	}
}

// UnresolvedVariableError names the first placeholder left after rendering.
type UnresolvedVariableError struct {
	TemplateID string `json:"template_id"`
	Variable   string `json:"variable"`
}

// Error returns the unresolved variable name.
func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("template %s: unresolved variable %q", e.TemplateID, e.Variable)
}

// Unwrap allows errors.Is(err, ErrUnresolvedVariable).
func (e *UnresolvedVariableError) Unwrap() error { return ErrUnresolvedVariable }

// UnsupportedCapabilityError is returned by providers that lack an operation.
type UnsupportedCapabilityError struct {
	Provider   string `json:"provider"`
	Capability string `json:"capability"`
}

// Error returns the provider and missing capability.
func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Provider, e.Capability)
}

// Unwrap allows errors.Is(err, ErrUnsupportedCapability).
func (e *UnsupportedCapabilityError) Unwrap() error { return ErrUnsupportedCapability }

// IsBudgetExceeded reports whether err carries a domain.BudgetExceededError.
func IsBudgetExceeded(err error) bool {
	var be domain.BudgetExceededError
	if errors.As(err, &be) {
		return true
	}
	var bp *domain.BudgetExceededError
	return errors.As(err, &bp)
}

// GetRetryAfter extracts retry-after seconds from rate limit and provider errors.
func GetRetryAfter(err error) int {
	if err == nil {
		return 0
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr.RetryAfter
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.RetryAfter
	}

	return 0
}
