package transport

import (
	"net/http"
	"time"

	"github.com/ahrav/go-themis/internal/domain"
)

// OperationType distinguishes completion from embedding calls.
type OperationType string

const (
	// OpCompletion produces chat completion text.
	OpCompletion OperationType = "completion"

	// OpEmbedding produces a vector for a single input text.
	OpEmbedding OperationType = "embedding"
)

// Request is the provider-neutral LLM request.
// Zero-valued optional parameters are filled from LLMConfig by the provider.
type Request struct {
	// Operation selects completion or embedding.
	Operation OperationType `json:"operation"`

	// Model overrides the configured model for this call.
	Model string `json:"model,omitempty"`

	// Messages is the ordered, role-tagged conversation for completions.
	Messages []domain.Message `json:"messages,omitempty"`

	// Input is the text to embed for embedding calls.
	Input string `json:"input,omitempty"`

	// Generation parameters. Nil pointers mean "use the configured default".
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty float64  `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64  `json:"presence_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty"`

	// WorkspaceID attributes usage for budget enforcement. Empty means global only.
	WorkspaceID string `json:"workspace_id,omitempty"`

	// EstimatedTokens is the prompt+completion estimate used by the rate
	// limiter and budget guard. Filled by the service when zero.
	EstimatedTokens int `json:"estimated_tokens,omitempty"`

	// Control fields.
	Timeout        time.Duration `json:"timeout,omitempty"`
	RequestID      string        `json:"request_id,omitempty"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
}

// Float returns a pointer to v for optional request parameters.
func Float(v float64) *float64 { return &v }

// Response is the provider-neutral LLM response.
type Response struct {
	// Content is the generated text.
	Content string `json:"content"`

	// FinishReason indicates why generation stopped.
	FinishReason domain.FinishReason `json:"finish_reason"`

	// Embedding is set for embedding calls.
	Embedding []float64 `json:"embedding,omitempty"`

	// Usage tracks token consumption reported by the provider.
	Usage domain.TokenUsage `json:"usage"`

	// Provider and Model tag the response with what actually served it.
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// ProviderRequestIDs enables cross-system correlation.
	ProviderRequestIDs []string `json:"provider_request_ids,omitempty"`

	// Latency is the wall-clock duration of the final attempt.
	Latency time.Duration `json:"latency"`

	// Headers preserves raw response headers for debugging.
	Headers http.Header `json:"-"`
}
