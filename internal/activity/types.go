package activity

import (
	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/scoring"
)

// GenerateInitiativesInput asks for new initiative ideas.
type GenerateInitiativesInput struct {
	WorkspaceID string                   `json:"workspace_id"`
	Request     domain.InitiativeRequest `json:"request"`
	// BatchSize above zero splits large counts into concurrent sub-requests.
	BatchSize int `json:"batch_size,omitempty"`
	// MinImpact and MinConfidence filter the results when either is set.
	MinImpact     float64 `json:"min_impact,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
}

// GenerateInitiativesOutput holds generated initiatives ordered by priority.
type GenerateInitiativesOutput struct {
	Initiatives []domain.GeneratedInitiative `json:"initiatives"`
}

// GenerateBriefInput asks for a concept brief.
type GenerateBriefInput struct {
	WorkspaceID string              `json:"workspace_id"`
	Request     domain.BriefRequest `json:"request"`
}

// EnrichInitiativeInput asks for an initiative enrichment.
type EnrichInitiativeInput struct {
	WorkspaceID string                   `json:"workspace_id"`
	Request     domain.EnrichmentRequest `json:"request"`
}

// CheckFeasibilityInput asks for a feasibility report.
type CheckFeasibilityInput struct {
	WorkspaceID string                    `json:"workspace_id"`
	Request     domain.FeasibilityRequest `json:"request"`
}

// CaptureIntentInput turns free text into a structured intent.
type CaptureIntentInput struct {
	WorkspaceID string `json:"workspace_id"`
	Text        string `json:"text"`
}

// ScoreInitiativeInput scores one initiative. When Reviews is non-empty the
// reviewer values are aggregated per criterion against Criteria; otherwise
// Inputs are scored directly.
type ScoreInitiativeInput struct {
	WorkspaceID  string                 `json:"workspace_id"`
	InitiativeID string                 `json:"initiative_id"`
	Inputs       []domain.ScoreInput    `json:"inputs,omitempty"`
	Reviews      []domain.ReviewerScore `json:"reviews,omitempty"`
	Criteria     []domain.Criterion     `json:"criteria,omitempty"`
	RiskIndex    *float64               `json:"risk_index,omitempty"`
	Config       scoring.Config         `json:"config"`
}

// EvaluateGatesInput evaluates requirement gates for one initiative.
type EvaluateGatesInput struct {
	WorkspaceID  string                   `json:"workspace_id"`
	InitiativeID string                   `json:"initiative_id"`
	Gates        []domain.RequirementGate `json:"gates"`
	Context      map[string]any           `json:"context"`
}

// RankInput ranks scored initiatives.
type RankInput struct {
	WorkspaceID string                   `json:"workspace_id"`
	Scores      []domain.InitiativeScore `json:"scores"`
	TieBreaks   []domain.TieBreak        `json:"tie_breaks,omitempty"`
	// MinScore drops initiatives scoring below it.
	MinScore *float64 `json:"min_score,omitempty"`
	// Top keeps only the first N results when positive.
	Top int `json:"top,omitempty"`
}

// WhatIfInput re-ranks under hypothetical weights.
type WhatIfInput struct {
	Scores    []domain.InitiativeScore `json:"scores"`
	TieBreaks []domain.TieBreak        `json:"tie_breaks,omitempty"`
	Weights   map[string]float64       `json:"weights"`
}

// AnalyzeSensitivityInput asks how ranks respond to weight changes.
type AnalyzeSensitivityInput struct {
	WorkspaceID string                   `json:"workspace_id"`
	Scores      []domain.InitiativeScore `json:"scores"`
	TieBreaks   []domain.TieBreak        `json:"tie_breaks,omitempty"`
	// InitiativeIDs limits the analysis; empty analyzes every initiative.
	InitiativeIDs []string `json:"initiative_ids,omitempty"`
	// CriticalThreshold defaults to scoring.DefaultCriticalThreshold.
	CriticalThreshold float64 `json:"critical_threshold,omitempty"`
}

// AnalyzeSensitivityOutput holds per-initiative analyses and the fragile
// initiative/criterion pairs across all of them.
type AnalyzeSensitivityOutput struct {
	Analyses       []domain.SensitivityAnalysis    `json:"analyses"`
	Explanations   []domain.SensitivityExplanation `json:"explanations"`
	CriticalPoints []domain.CriticalPoint          `json:"critical_points"`
}

// DetectDuplicatesInput looks for near-identical initiatives.
type DetectDuplicatesInput struct {
	WorkspaceID string                        `json:"workspace_id"`
	Initiatives []domain.EmbeddableInitiative `json:"initiatives"`
	// Threshold defaults to the embedding service's duplicate threshold.
	Threshold float64 `json:"threshold,omitempty"`
}
