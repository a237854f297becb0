// Package activity exposes the decision engine as Temporal activities.
//
// Generation activities call the LLM through the shared service stack and
// attribute usage to the input's workspace. Scoring activities are pure
// computation and never retry on their own: a failure there is a caller bug.
package activity

import (
	"context"
	"fmt"

	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/embedding"
	"github.com/ahrav/go-themis/internal/generation"
	"github.com/ahrav/go-themis/internal/llm"
	"github.com/ahrav/go-themis/internal/scoring"
	base "github.com/ahrav/go-themis/pkg/activity"
	"github.com/ahrav/go-themis/pkg/events"
)

const (
	generationSource = "generation-activity"
	scoringSource    = "scoring-activity"
	embeddingSource  = "embedding-activity"
)

// Deps are the services activities delegate to. Nil generation or embedding
// services make the matching activities fail with ErrDependencyMissing, so a
// scoring-only worker needs no LLM credentials.
type Deps struct {
	Initiatives *generation.InitiativeGenerator
	Briefs      *generation.BriefGenerator
	Enrichment  *generation.EnrichmentService
	Feasibility *generation.FeasibilityChecker
	Intent      *generation.IntentCapture
	Embeddings  *embedding.Service
}

// Activities holds every activity method registered on the worker.
type Activities struct {
	base.BaseActivities
	deps  Deps
	gates *scoring.GateEvaluator
}

// NewActivities creates the activity set.
func NewActivities(b base.BaseActivities, deps Deps) *Activities {
	return &Activities{
		BaseActivities: b,
		deps:           deps,
		gates:          scoring.NewGateEvaluator(),
	}
}

func missing(op, dep string) error {
	return nonRetryable(TypeInternal, fmt.Errorf("%w: %s", ErrDependencyMissing, dep), op+": worker not configured")
}

// GenerateInitiatives drafts initiative ideas for an intent.
func (a *Activities) GenerateInitiatives(ctx context.Context, in GenerateInitiativesInput) (*GenerateInitiativesOutput, error) {
	const op = "GenerateInitiatives"
	if a.deps.Initiatives == nil {
		return nil, missing(op, "initiative generator")
	}
	if err := in.Request.Validate(); err != nil {
		return nil, nonRetryable(TypeValidation, err, op+": invalid input")
	}
	ctx = llm.WithWorkspace(ctx, in.WorkspaceID)

	var (
		out []domain.GeneratedInitiative
		err error
	)
	if in.BatchSize > 0 {
		out, err = a.deps.Initiatives.GenerateBatch(ctx, in.Request, in.BatchSize)
	} else {
		out, err = a.deps.Initiatives.Generate(ctx, in.Request)
	}
	if err != nil {
		return nil, classifyLLM(op, err)
	}

	if in.MinImpact > 0 || in.MinConfidence > 0 {
		out = generation.FilterByQuality(out, in.MinImpact, in.MinConfidence)
	}
	out = generation.Rank(out)

	a.Emit(ctx, events.TypeInitiativesDrafted, generationSource, in.WorkspaceID,
		map[string]any{"project_id": in.Request.ProjectID, "count": len(out)}, in.Request.ProjectID)
	return &GenerateInitiativesOutput{Initiatives: out}, nil
}

// GenerateBrief writes a concept brief for a scored initiative.
func (a *Activities) GenerateBrief(ctx context.Context, in GenerateBriefInput) (*domain.GeneratedBrief, error) {
	const op = "GenerateBrief"
	if a.deps.Briefs == nil {
		return nil, missing(op, "brief generator")
	}
	if err := in.Request.Validate(); err != nil {
		return nil, nonRetryable(TypeValidation, err, op+": invalid input")
	}

	brief, err := a.deps.Briefs.Generate(llm.WithWorkspace(ctx, in.WorkspaceID), in.Request)
	if err != nil {
		return nil, classifyLLM(op, err)
	}
	return &brief, nil
}

// EnrichInitiative expands an initiative's description, tags and risks.
func (a *Activities) EnrichInitiative(ctx context.Context, in EnrichInitiativeInput) (*domain.EnrichedInitiative, error) {
	const op = "EnrichInitiative"
	if a.deps.Enrichment == nil {
		return nil, missing(op, "enrichment service")
	}
	if err := in.Request.Validate(); err != nil {
		return nil, nonRetryable(TypeValidation, err, op+": invalid input")
	}

	enriched, err := a.deps.Enrichment.Enrich(llm.WithWorkspace(ctx, in.WorkspaceID), in.Request)
	if err != nil {
		return nil, classifyLLM(op, err)
	}
	return &enriched, nil
}

// CheckFeasibility assesses how achievable an initiative is.
func (a *Activities) CheckFeasibility(ctx context.Context, in CheckFeasibilityInput) (*domain.FeasibilityReport, error) {
	const op = "CheckFeasibility"
	if a.deps.Feasibility == nil {
		return nil, missing(op, "feasibility checker")
	}
	if err := in.Request.Validate(); err != nil {
		return nil, nonRetryable(TypeValidation, err, op+": invalid input")
	}

	report, err := a.deps.Feasibility.Check(llm.WithWorkspace(ctx, in.WorkspaceID), in.Request)
	if err != nil {
		return nil, classifyLLM(op, err)
	}
	return &report, nil
}

// CaptureIntent structures a free-text project intent.
func (a *Activities) CaptureIntent(ctx context.Context, in CaptureIntentInput) (*domain.CapturedIntent, error) {
	const op = "CaptureIntent"
	if a.deps.Intent == nil {
		return nil, missing(op, "intent capture")
	}

	intent, err := a.deps.Intent.Capture(llm.WithWorkspace(ctx, in.WorkspaceID), in.Text)
	if err != nil {
		return nil, classifyLLM(op, err)
	}
	return &intent, nil
}

// DetectDuplicates reports initiative pairs whose embeddings are nearly identical.
func (a *Activities) DetectDuplicates(ctx context.Context, in DetectDuplicatesInput) ([]domain.DuplicatePair, error) {
	const op = "DetectDuplicates"
	if a.deps.Embeddings == nil {
		return nil, missing(op, "embedding service")
	}
	for i := range in.Initiatives {
		if err := in.Initiatives[i].Validate(); err != nil {
			return nil, nonRetryable(TypeValidation, err, op+": invalid input")
		}
	}

	threshold := in.Threshold
	if threshold == 0 {
		threshold = a.deps.Embeddings.DuplicateThreshold()
	}

	a.RecordHeartbeat(ctx, len(in.Initiatives))
	pairs, err := a.deps.Embeddings.DetectDuplicates(llm.WithWorkspace(ctx, in.WorkspaceID), in.Initiatives, threshold)
	if err != nil {
		return nil, classifyLLM(op, err)
	}

	if len(pairs) > 0 {
		a.Emit(ctx, events.TypeDuplicatesFound, embeddingSource, in.WorkspaceID, pairs, fmt.Sprint(len(in.Initiatives)))
	}
	return pairs, nil
}
