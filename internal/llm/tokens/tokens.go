// Package tokens provides rough token estimates for budgeting and rate
// limiting. Estimates assume about four characters per token.
package tokens

import (
	"strings"
	"unicode/utf8"

	"github.com/ahrav/go-themis/internal/domain"
)

const (
	charsPerToken = 4

	// messageOverhead covers role and delimiter tokens per chat message.
	messageOverhead = 4
	// promptOverhead covers the framing around the whole message list.
	promptOverhead = 2

	// DefaultSafetyBuffer is held back from the context window when sizing completions.
	DefaultSafetyBuffer = 100

	// DefaultModelLimit applies to models not in the table.
	DefaultModelLimit = 4096
)

var modelLimits = map[string]int{
	"gpt-4-turbo-preview": 128000,
	"gpt-4":               8192,
	"gpt-3.5-turbo":       16385,
}

// claude-3 models all share one context size.
const claude3Limit = 200000

// Estimate returns ceil(chars/4) for text.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// EstimateMessages estimates the prompt size of a chat request.
func EstimateMessages(messages []domain.Message) int {
	total := 0
	for _, m := range messages {
		total += messageOverhead + Estimate(m.Content)
	}
	return total + promptOverhead
}

// ModelLimit returns the context window for model.
func ModelLimit(model string) int {
	if limit, ok := modelLimits[model]; ok {
		return limit
	}
	if strings.HasPrefix(model, "claude-3-") {
		return claude3Limit
	}
	return DefaultModelLimit
}

// MaxCompletion returns how many completion tokens fit after the prompt
// and a safety buffer. It never returns a negative number.
func MaxCompletion(promptTokens, modelLimit, safetyBuffer int) int {
	return max(modelLimit-promptTokens-safetyBuffer, 0)
}
