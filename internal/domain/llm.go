package domain

import "time"

// Role identifies the author of a chat message.
type Role string

// Supported message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged entry in a chat conversation.
type Message struct {
	Role    Role   `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

// UserMessage builds a user-role message.
func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// FinishReason indicates why a provider stopped generating.
// Provider-specific reasons are mapped onto this closed set.
type FinishReason string

const (
	// FinishStop indicates natural completion or a stop sequence.
	FinishStop FinishReason = "stop"

	// FinishLength indicates the token ceiling was reached.
	FinishLength FinishReason = "length"

	// FinishContentFilter indicates the provider filtered the output.
	FinishContentFilter FinishReason = "content_filter"

	// FinishError indicates any other or unrecognised termination.
	FinishError FinishReason = "error"
)

// TokenUsage reports token consumption for a single provider call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageMetrics is one append-only record per LLM call.
// Records are emitted on success and failure so budget accounting sees every attempt.
type UsageMetrics struct {
	ID               string        `json:"id"`
	Timestamp        time.Time     `json:"timestamp"`
	WorkspaceID      string        `json:"workspace_id,omitempty"`
	Provider         string        `json:"provider"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	Duration         time.Duration `json:"duration"`
	Success          bool          `json:"success"`
	Error            string        `json:"error,omitempty"`
}

// UsageRecorder receives usage records as they are produced.
type UsageRecorder func(UsageMetrics)
