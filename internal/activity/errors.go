package activity

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
)

// Activity error sentinels.
var (
	// ErrActivityValidation is returned when activity input fails validation.
	ErrActivityValidation = errors.New("activity input validation failed")

	// ErrDependencyMissing is returned when an activity is invoked on a worker
	// that was not wired with the service it needs.
	ErrDependencyMissing = errors.New("activity dependency not configured")
)

// Application error types reported to workflows.
const (
	TypeValidation = "Validation"
	TypeBudget     = "Budget"
	TypeProvider   = "Provider"
	TypeSchema     = "Schema"
	TypeInternal   = "Internal"
)

// nonRetryable wraps an error as a Temporal non-retryable application error.
func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

// retryable wraps an error as a Temporal application error the activity
// retry policy may retry.
func retryable(tag string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, tag, cause)
}

// classifyLLM maps an LLM-layer failure to an application error. The LLM
// service has already retried transient failures locally, so only errors
// classified as retryable are handed back to Temporal for another attempt.
func classifyLLM(op string, err error) error {
	wfErr := llmerrors.ClassifyLLMError(err)
	switch wfErr.Type {
	case llmerrors.ErrorTypeBudget:
		return nonRetryable(TypeBudget, err, op+": budget exceeded")
	case llmerrors.ErrorTypeValidation:
		if errors.Is(err, llmerrors.ErrSchemaValidation) {
			return nonRetryable(TypeSchema, err, op+": response failed schema validation")
		}
		return nonRetryable(TypeValidation, err, op+": invalid request")
	}
	if wfErr.Retryable {
		return retryable(TypeProvider, err, op+": "+wfErr.Message)
	}
	return nonRetryable(TypeProvider, err, op+": "+wfErr.Message)
}
