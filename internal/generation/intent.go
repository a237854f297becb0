package generation

import (
	"context"
	"errors"
	"strings"

	"github.com/ahrav/go-themis/internal/domain"
	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
	"github.com/ahrav/go-themis/internal/llm/prompts"
)

var errEmptyIntent = errors.New("intent text is empty")

var intentDecoder = mustDecoder[domain.CapturedIntent]("intent")

// IntentCapture turns free-text project intent into a goal, a launch target
// and objectives.
type IntentCapture struct {
	base
}

// NewIntentCapture creates an IntentCapture.
func NewIntentCapture(llm Completer, registry *prompts.Registry) (*IntentCapture, error) {
	b, err := newBase(llm, registry, "intent_capture")
	if err != nil {
		return nil, err
	}
	return &IntentCapture{base: b}, nil
}

// Capture structures userInput.
func (c *IntentCapture) Capture(ctx context.Context, userInput string) (domain.CapturedIntent, error) {
	if strings.TrimSpace(userInput) == "" {
		return domain.CapturedIntent{}, &llmerrors.ValidationError{Field: "userInput", Message: errEmptyIntent.Error(), Cause: errEmptyIntent}
	}

	content, err := c.completeTemplate(ctx, prompts.IntentCapture,
		map[string]string{"userInput": userInput}, intentTemperature, intentMaxTokens)
	if err != nil {
		return domain.CapturedIntent{}, err
	}

	result := intentDecoder.Decode(content)
	if !result.IsOk() {
		return domain.CapturedIntent{}, decodeFailed(ctx, c.logger, "intent capture", result)
	}
	intent, _ := result.Value()
	return intent, nil
}
