package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahrav/go-themis/internal/activity"
	"github.com/ahrav/go-themis/internal/embedding"
	"github.com/ahrav/go-themis/internal/generation"
	"github.com/ahrav/go-themis/internal/llm"
	"github.com/ahrav/go-themis/internal/llm/configuration"
	"github.com/ahrav/go-themis/internal/llm/prompts"
	base "github.com/ahrav/go-themis/pkg/activity"
	"github.com/ahrav/go-themis/pkg/events"
)

// NewPromptRegistry returns the built-in templates overlaid with any YAML
// templates found in dir.
func NewPromptRegistry(dir string) (*prompts.Registry, error) {
	reg, err := prompts.NewDefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load built-in prompts: %w", err)
	}
	if dir != "" {
		if err := reg.LoadDir(dir); err != nil {
			return nil, fmt.Errorf("failed to load prompts from %s: %w", dir, err)
		}
	}
	return reg, nil
}

// InitializeLLMService creates the LLM service with usage events routed to
// sink. Returns the service for dependency injection rather than setting
// global state.
func InitializeLLMService(ctx context.Context, cfg *configuration.Config, sink events.EventSink, opts ...llm.Option) (*llm.Service, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	opts = append([]llm.Option{llm.WithUsageRecorder(events.UsageRecorder(ctx, sink))}, opts...)

	svc, err := llm.NewService(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	return svc, nil
}

// NewDeps builds every LLM-backed activity dependency on top of svc.
func NewDeps(svc *llm.Service, reg *prompts.Registry, embCfg configuration.EmbeddingConfig) (activity.Deps, error) {
	var (
		deps activity.Deps
		errs []error
		err  error
	)
	deps.Initiatives, err = generation.NewInitiativeGenerator(svc, reg)
	errs = append(errs, err)
	deps.Briefs, err = generation.NewBriefGenerator(svc, reg)
	errs = append(errs, err)
	deps.Enrichment, err = generation.NewEnrichmentService(svc, reg)
	errs = append(errs, err)
	deps.Feasibility, err = generation.NewFeasibilityChecker(svc, reg)
	errs = append(errs, err)
	deps.Intent, err = generation.NewIntentCapture(svc, reg)
	errs = append(errs, err)
	deps.Embeddings, err = embedding.NewService(svc, embCfg)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return activity.Deps{}, fmt.Errorf("failed to initialize activity dependencies: %w", err)
	}
	return deps, nil
}

// Setup builds the complete activity set from configuration. With
// scoringOnly set no LLM service is created and generation activities fail
// with activity.ErrDependencyMissing. The returned closer releases the LLM
// service's connections.
func Setup(
	ctx context.Context,
	cfg *configuration.Config,
	sink events.EventSink,
	scoringOnly bool,
	opts ...llm.Option,
) (*activity.Activities, func() error, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	if sink == nil {
		sink = events.NewNoOpEventSink()
	}
	b := base.NewBaseActivities(sink)
	noop := func() error { return nil }

	if scoringOnly {
		return activity.NewActivities(b, activity.Deps{}), noop, nil
	}

	reg, err := NewPromptRegistry(cfg.PromptsDir)
	if err != nil {
		return nil, noop, err
	}
	svc, err := InitializeLLMService(ctx, cfg, sink, opts...)
	if err != nil {
		return nil, noop, err
	}
	deps, err := NewDeps(svc, reg, cfg.Embedding)
	if err != nil {
		_ = svc.Close()
		return nil, noop, err
	}
	return activity.NewActivities(b, deps), svc.Close, nil
}
