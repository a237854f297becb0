package errors

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/ahrav/go-themis/internal/domain"
)

// retryablePatterns are lower-case message fragments that mark an untyped
// error as transient.
var retryablePatterns = []string{
	"rate limit", "timeout", "timed out", "network", "connection reset",
	"connection refused", "429", "500", "502", "503", "504",
}

func matchesRetryablePattern(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range retryablePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Retryable reports whether err should be retried by the shared retry policy.
// Typed errors are checked first, then sentinels, then message patterns.
// Caller cancellation is never retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return ClassifyLLMError(err).Retryable
}

// ClassifyLLMError transforms LLM operation errors into WorkflowError with retry guidance.
func ClassifyLLMError(err error) *WorkflowError {
	if err == nil {
		return nil
	}

	if workflowErr := classifyTypedErrors(err); workflowErr != nil {
		return workflowErr
	}

	if workflowErr := classifySentinelErrors(err); workflowErr != nil {
		return workflowErr
	}

	return classifyStringPatternErrors(err)
}

// classifyTypedErrors handles strongly-typed error classification.
func classifyTypedErrors(err error) *WorkflowError {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		typ := providerErr.Type
		if typ == "" {
			typ = ErrorTypeUnknown
		}
		return &WorkflowError{
			Type:      typ,
			Message:   providerErr.Message,
			Code:      providerErr.Code,
			Retryable: providerErr.IsRetryable(),
			Details: map[string]any{
				"provider":    providerErr.Provider,
				"status_code": providerErr.StatusCode,
				"retry_after": providerErr.RetryAfter,
			},
			Cause: err,
		}
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &WorkflowError{
			Type:      ErrorTypeRateLimit,
			Message:   rateLimitErr.Error(),
			Code:      "RATE_LIMIT",
			Retryable: true,
			Details: map[string]any{
				"provider":    rateLimitErr.Provider,
				"retry_after": rateLimitErr.RetryAfter,
			},
			Cause: err,
		}
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return &WorkflowError{
			Type:      ErrorTypeValidation,
			Message:   valErr.Error(),
			Code:      "VALIDATION",
			Retryable: false,
			Details: map[string]any{
				"field": valErr.Field,
				"value": valErr.Value,
			},
			Cause: err,
		}
	}

	var budgetErr domain.BudgetExceededError
	if errors.As(err, &budgetErr) {
		return &WorkflowError{
			Type:      ErrorTypeBudget,
			Message:   budgetErr.Error(),
			Code:      "BUDGET_EXCEEDED",
			Retryable: false,
			Details: map[string]any{
				"scope":        budgetErr.Scope.String(),
				"period":       budgetErr.Period.String(),
				"workspace_id": budgetErr.WorkspaceID,
				"over_by":      budgetErr.OverBy(),
			},
			Cause: err,
		}
	}

	var unresolvedErr *UnresolvedVariableError
	if errors.As(err, &unresolvedErr) {
		return &WorkflowError{
			Type:      ErrorTypeTemplate,
			Message:   unresolvedErr.Error(),
			Code:      "UNRESOLVED_VARIABLE",
			Retryable: false,
			Details: map[string]any{
				"template_id": unresolvedErr.TemplateID,
				"variable":    unresolvedErr.Variable,
			},
			Cause: err,
		}
	}

	var unsupportedErr *UnsupportedCapabilityError
	if errors.As(err, &unsupportedErr) {
		return &WorkflowError{
			Type:      ErrorTypeUnsupported,
			Message:   unsupportedErr.Error(),
			Code:      "UNSUPPORTED",
			Retryable: false,
			Details: map[string]any{
				"provider":   unsupportedErr.Provider,
				"capability": unsupportedErr.Capability,
			},
			Cause: err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && !errors.Is(err, context.Canceled) {
		typ := ErrorTypeNetwork
		if netErr.Timeout() {
			typ = ErrorTypeTimeout
		}
		return &WorkflowError{
			Type:      typ,
			Message:   err.Error(),
			Code:      "NETWORK_ERROR",
			Retryable: true,
			Cause:     err,
		}
	}

	return nil
}

// classifySentinelErrors handles sentinel error classification.
func classifySentinelErrors(err error) *WorkflowError {
	switch {
	case errors.Is(err, context.Canceled):
		return &WorkflowError{
			Type:      ErrorTypeUnknown,
			Message:   err.Error(),
			Code:      "CANCELLED",
			Retryable: false,
			Cause:     err,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &WorkflowError{
			Type:      ErrorTypeTimeout,
			Message:   err.Error(),
			Code:      "TIMEOUT",
			Retryable: true,
			Cause:     err,
		}
	case errors.Is(err, ErrRateLimitExceeded):
		return &WorkflowError{
			Type:      ErrorTypeRateLimit,
			Message:   err.Error(),
			Code:      "RATE_LIMIT",
			Retryable: true,
			Cause:     err,
		}
	case errors.Is(err, ErrProviderUnavailable):
		return &WorkflowError{
			Type:      ErrorTypeProvider,
			Message:   err.Error(),
			Code:      "PROVIDER_UNAVAILABLE",
			Retryable: true,
			Cause:     err,
		}
	case errors.Is(err, ErrSchemaValidation):
		return &WorkflowError{
			Type:      ErrorTypeValidation,
			Message:   err.Error(),
			Code:      "SCHEMA_VALIDATION",
			Retryable: false,
			Cause:     err,
		}
	case errors.Is(err, ErrTemplateNotFound), errors.Is(err, ErrUnresolvedVariable):
		return &WorkflowError{
			Type:      ErrorTypeTemplate,
			Message:   err.Error(),
			Code:      "TEMPLATE",
			Retryable: false,
			Cause:     err,
		}
	case errors.Is(err, ErrUnknownProvider), errors.Is(err, ErrUnsupportedCapability):
		return &WorkflowError{
			Type:      ErrorTypeUnsupported,
			Message:   err.Error(),
			Code:      "UNSUPPORTED",
			Retryable: false,
			Cause:     err,
		}
	case errors.Is(err, ErrMaxRetriesExceeded):
		return &WorkflowError{
			Type:      ErrorTypeProvider,
			Message:   err.Error(),
			Code:      "MAX_RETRIES",
			Retryable: false,
			Cause:     err,
		}
	}

	return nil
}

// classifyStringPatternErrors handles untyped error classification.
func classifyStringPatternErrors(err error) *WorkflowError {
	errMsg := strings.ToLower(err.Error())
	details := map[string]any{"original_error": err.Error()}

	switch {
	case strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "429"):
		return &WorkflowError{
			Type:      ErrorTypeRateLimit,
			Message:   "Rate limit exceeded",
			Code:      "RATE_LIMIT",
			Retryable: true,
			Details:   details,
			Cause:     err,
		}
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "timed out"):
		return &WorkflowError{
			Type:      ErrorTypeTimeout,
			Message:   "Request timeout",
			Code:      "TIMEOUT",
			Retryable: true,
			Details:   details,
			Cause:     err,
		}
	case strings.Contains(errMsg, "unauthorized") || strings.Contains(errMsg, "authentication"):
		return &WorkflowError{
			Type:      ErrorTypeAuth,
			Message:   "Authentication failed",
			Code:      "AUTH_FAILED",
			Retryable: false,
			Details:   details,
			Cause:     err,
		}
	case strings.Contains(errMsg, "forbidden") || strings.Contains(errMsg, "permission"):
		return &WorkflowError{
			Type:      ErrorTypePermission,
			Message:   "Permission denied",
			Code:      "PERMISSION_DENIED",
			Retryable: false,
			Details:   details,
			Cause:     err,
		}
	case strings.Contains(errMsg, "quota"):
		return &WorkflowError{
			Type:      ErrorTypeQuota,
			Message:   "Quota exceeded",
			Code:      "QUOTA_EXCEEDED",
			Retryable: false,
			Details:   details,
			Cause:     err,
		}
	case matchesRetryablePattern(errMsg):
		return &WorkflowError{
			Type:      ErrorTypeNetwork,
			Message:   "Transient provider error",
			Code:      "TRANSIENT",
			Retryable: true,
			Details:   details,
			Cause:     err,
		}
	default:
		return &WorkflowError{
			Type:      ErrorTypeUnknown,
			Message:   "Unknown error",
			Code:      "UNKNOWN",
			Retryable: false,
			Details:   details,
			Cause:     err,
		}
	}
}
