package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-themis/internal/domain"
)

func TestProviderErrorIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *ProviderError
		want bool
	}{
		{"rate_limit", &ProviderError{Type: ErrorTypeRateLimit}, true},
		{"timeout", &ProviderError{Type: ErrorTypeTimeout}, true},
		{"provider_unavailable", &ProviderError{Type: ErrorTypeProvider}, true},
		{"network", &ProviderError{Type: ErrorTypeNetwork}, true},
		{"auth", &ProviderError{Type: ErrorTypeAuth, Message: "rate limit"}, false},
		{"validation", &ProviderError{Type: ErrorTypeValidation}, false},
		{"unknown_with_503_message", &ProviderError{Type: ErrorTypeUnknown, Message: "upstream returned 503"}, true},
		{"unknown_plain_message", &ProviderError{Type: ErrorTypeUnknown, Message: "bad things"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.IsRetryable())
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped_provider_rate_limit", fmt.Errorf("call: %w", &ProviderError{Provider: "openai", StatusCode: http.StatusTooManyRequests, Type: ErrorTypeRateLimit}), true},
		{"local_rate_limit", &RateLimitError{Provider: "openai", LocalLimit: true}, true},
		{"validation", &ValidationError{Field: "messages", Message: "must not be empty"}, false},
		{"budget", domain.NewBudgetExceededError(domain.ScopeGlobal, domain.BudgetDaily, "", 10, 8, 5), false},
		{"unresolved", &UnresolvedVariableError{TemplateID: "t", Variable: "y"}, false},
		{"unsupported", &UnsupportedCapabilityError{Provider: "anthropic", Capability: "embeddings"}, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"pattern_timeout", errors.New("read: i/o timeout"), true},
		{"pattern_502", errors.New("bad gateway 502"), true},
		{"pattern_network", errors.New("network is unreachable"), true},
		{"pattern_other", errors.New("invalid api key"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestClassifyLLMError(t *testing.T) {
	t.Run("nil_error", func(t *testing.T) {
		assert.Nil(t, ClassifyLLMError(nil))
	})

	t.Run("provider_error_classification", func(t *testing.T) {
		providerErr := &ProviderError{
			Provider:   "openai",
			StatusCode: http.StatusTooManyRequests,
			Message:    "Rate limit exceeded",
			Code:       "rate_limit_exceeded",
			Type:       ErrorTypeRateLimit,
			RetryAfter: 60,
		}

		result := ClassifyLLMError(providerErr)
		require.NotNil(t, result)
		assert.Equal(t, ErrorTypeRateLimit, result.Type)
		assert.Equal(t, "rate_limit_exceeded", result.Code)
		assert.True(t, result.Retryable)
		assert.Equal(t, "openai", result.Details["provider"])
		assert.Equal(t, http.StatusTooManyRequests, result.Details["status_code"])
		assert.Equal(t, providerErr, result.Cause)
	})

	t.Run("budget_error_classification", func(t *testing.T) {
		err := fmt.Errorf("guard: %w", domain.NewBudgetExceededError(domain.ScopeWorkspace, domain.BudgetDaily, "ws-1", 100, 90, 20))

		result := ClassifyLLMError(err)
		require.NotNil(t, result)
		assert.Equal(t, ErrorTypeBudget, result.Type)
		assert.False(t, result.Retryable)
		assert.Equal(t, "ws-1", result.Details["workspace_id"])
		assert.Equal(t, int64(10), result.Details["over_by"])
	})

	t.Run("schema_sentinel", func(t *testing.T) {
		result := ClassifyLLMError(NewSchemaError("brief", "missing risks"))
		require.NotNil(t, result)
		assert.Equal(t, ErrorTypeValidation, result.Type)
		assert.False(t, result.Retryable)
	})

	t.Run("unresolved_variable_names_variable", func(t *testing.T) {
		err := &UnresolvedVariableError{TemplateID: "greeting", Variable: "y"}
		assert.ErrorIs(t, err, ErrUnresolvedVariable)
		assert.Contains(t, err.Error(), `"y"`)

		result := ClassifyLLMError(err)
		assert.Equal(t, "y", result.Details["variable"])
	})

	t.Run("unknown_pattern", func(t *testing.T) {
		result := ClassifyLLMError(errors.New("something odd"))
		assert.Equal(t, ErrorTypeUnknown, result.Type)
		assert.Equal(t, "something odd", result.Details["original_error"])
	})
}

func TestGetRetryAfter(t *testing.T) {
	assert.Equal(t, 0, GetRetryAfter(nil))
	assert.Equal(t, 30, GetRetryAfter(&RateLimitError{RetryAfter: 30}))
	assert.Equal(t, 5, GetRetryAfter(fmt.Errorf("x: %w", &ProviderError{RetryAfter: 5})))
	assert.Equal(t, 0, GetRetryAfter(errors.New("plain")))
}

func TestIsBudgetExceeded(t *testing.T) {
	err := fmt.Errorf("wrap: %w", domain.NewBudgetExceededError(domain.ScopeGlobal, domain.BudgetDaily, "", 1, 1, 1))
	assert.True(t, IsBudgetExceeded(err))
	assert.False(t, IsBudgetExceeded(errors.New("nope")))
}
