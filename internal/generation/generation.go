// Package generation holds the LLM-backed tasks: initiative ideas, concept
// briefs, enrichment, feasibility checks and intent capture. Each task
// renders a prompt from the registry, sends it through a Completer with a
// task-specific temperature and token ceiling, and decodes the reply
// against a fixed schema.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-themis/internal/domain"
	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
	"github.com/ahrav/go-themis/internal/llm/prompts"
	"github.com/ahrav/go-themis/internal/llm/transport"
)

// Completer sends a chat completion. *llm.Service satisfies it.
type Completer interface {
	Complete(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// Sampling settings per task. Brainstorming runs hot, assessment runs cool.
const (
	initiativeMaxTokens = 2000

	briefTemperature = 0.7
	briefMaxTokens   = 1500

	sectionTemperature = 0.7
	sectionMaxTokens   = 500

	imagePromptTemperature = 0.8
	imagePromptMaxTokens   = 200

	enrichTemperature = 0.7
	enrichMaxTokens   = 800

	tagsTemperature = 0.6
	tagsMaxTokens   = 150

	feasibilityTemperature = 0.3
	feasibilityMaxTokens   = 1000

	intentTemperature = 0.5
	intentMaxTokens   = 500
)

var errNilDependency = errors.New("completer and prompt registry are required")

// base carries what every generator needs.
type base struct {
	llm     Completer
	prompts *prompts.Registry
	logger  *slog.Logger
}

func newBase(llm Completer, registry *prompts.Registry, component string) (base, error) {
	if llm == nil || registry == nil {
		return base{}, errNilDependency
	}
	return base{
		llm:     llm,
		prompts: registry,
		logger:  slog.Default().With("component", component),
	}, nil
}

// completeTemplate renders templateID and returns the completion text.
func (b base) completeTemplate(ctx context.Context, templateID string, vars map[string]string, temperature float64, maxTokens int) (string, error) {
	rendered, err := b.prompts.RenderPrompt(templateID, vars, "")
	if err != nil {
		return "", err
	}
	return b.complete(ctx, rendered.Messages(), temperature, maxTokens)
}

func (b base) complete(ctx context.Context, messages []domain.Message, temperature float64, maxTokens int) (string, error) {
	resp, err := b.llm.Complete(ctx, &transport.Request{
		Messages:    messages,
		Temperature: transport.Float(temperature),
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp.FinishReason == domain.FinishLength {
		b.logger.WarnContext(ctx, "completion truncated at token ceiling", "max_tokens", maxTokens)
	}
	return resp.Content, nil
}

// invalidRequest wraps a struct validation failure.
func invalidRequest(err error) error {
	return &llmerrors.ValidationError{Field: "request", Message: err.Error(), Cause: err}
}

// decodeFailed logs a rejected response and converts it to an error.
func decodeFailed[T any](ctx context.Context, logger *slog.Logger, task string, r Result[T]) error {
	logger.WarnContext(ctx, "response rejected", "task", task, "reason", r.Reason())
	_, err := r.Unwrap(task)
	return fmt.Errorf("failed to parse %s response: %w", task, err)
}
