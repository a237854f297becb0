package activity

import (
	"context"
	"errors"

	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/scoring"
	"github.com/ahrav/go-themis/pkg/events"
)

// ScoreInitiative computes the weighted score of one initiative.
func (a *Activities) ScoreInitiative(ctx context.Context, in ScoreInitiativeInput) (*domain.InitiativeScore, error) {
	const op = "ScoreInitiative"
	if in.InitiativeID == "" {
		return nil, nonRetryable(TypeValidation, ErrActivityValidation, op+": initiative_id is required")
	}

	scorer, err := scoring.NewScorer(in.Config)
	if err != nil {
		return nil, nonRetryable(TypeValidation, err, op+": invalid scoring config")
	}

	var score domain.InitiativeScore
	if len(in.Reviews) > 0 {
		score, err = scorer.AggregateScores(in.InitiativeID, in.Reviews, in.Criteria, in.RiskIndex)
	} else {
		score, err = scorer.CalculateScore(in.InitiativeID, in.Inputs, in.RiskIndex)
	}
	if err != nil {
		return nil, nonRetryable(TypeValidation, err, op+": cannot score initiative")
	}

	a.Emit(ctx, events.TypeInitiativeScored, scoringSource, in.WorkspaceID, score, in.InitiativeID)
	return &score, nil
}

// EvaluateGates checks an initiative against its requirement gates.
// Expression errors become failed gate results rather than activity errors.
func (a *Activities) EvaluateGates(ctx context.Context, in EvaluateGatesInput) (*domain.GateReport, error) {
	const op = "EvaluateGates"
	for i := range in.Gates {
		if err := in.Gates[i].Validate(); err != nil {
			return nil, nonRetryable(TypeValidation, err, op+": invalid gate")
		}
	}

	report := a.gates.Report(in.Gates, scoring.Context(in.Context))

	a.Emit(ctx, events.TypeGatesEvaluated, scoringSource, in.WorkspaceID, map[string]any{
		"initiative_id":     in.InitiativeID,
		"passes_hard_gates": report.PassesHardGates,
		"hard_failures":     report.HardFailures,
		"soft_failures":     report.SoftFailures,
	}, in.InitiativeID)
	return &report, nil
}

// Rank orders scored initiatives with dense ranks.
func (a *Activities) Rank(ctx context.Context, in RankInput) ([]domain.RankingResult, error) {
	const op = "Rank"
	if err := validateTieBreaks(in.TieBreaks); err != nil {
		return nil, nonRetryable(TypeValidation, err, op+": invalid tie-break")
	}

	results := scoring.NewRanker(in.TieBreaks...).Rank(in.Scores)
	if in.MinScore != nil {
		results = scoring.FilterByThreshold(results, *in.MinScore)
	}
	if in.Top > 0 {
		results = scoring.Top(results, in.Top)
	}

	a.Emit(ctx, events.TypeRankingProduced, scoringSource, in.WorkspaceID, results)
	return results, nil
}

// WhatIf reports rank movement under hypothetical weights.
func (a *Activities) WhatIf(_ context.Context, in WhatIfInput) ([]domain.RankChange, error) {
	const op = "WhatIf"
	if err := validateTieBreaks(in.TieBreaks); err != nil {
		return nil, nonRetryable(TypeValidation, err, op+": invalid tie-break")
	}
	if len(in.Weights) == 0 {
		return nil, nonRetryable(TypeValidation, ErrActivityValidation, op+": weights are required")
	}
	return scoring.NewRanker(in.TieBreaks...).WhatIf(in.Scores, in.Weights), nil
}

// AnalyzeSensitivity estimates how fragile each initiative's rank is.
func (a *Activities) AnalyzeSensitivity(ctx context.Context, in AnalyzeSensitivityInput) (*AnalyzeSensitivityOutput, error) {
	const op = "AnalyzeSensitivity"
	if err := validateTieBreaks(in.TieBreaks); err != nil {
		return nil, nonRetryable(TypeValidation, err, op+": invalid tie-break")
	}

	analyzer := scoring.NewSensitivityAnalyzer(scoring.NewRanker(in.TieBreaks...))

	var analyses []domain.SensitivityAnalysis
	if len(in.InitiativeIDs) == 0 {
		analyses = analyzer.AnalyzeAll(in.Scores)
	} else {
		byID := make(map[string]domain.InitiativeScore, len(in.Scores))
		for _, s := range in.Scores {
			byID[s.InitiativeID] = s
		}
		for _, id := range in.InitiativeIDs {
			target, ok := byID[id]
			if !ok {
				return nil, nonRetryable(TypeValidation, ErrActivityValidation, op+": unknown initiative "+id)
			}
			analyses = append(analyses, analyzer.Analyze(target, in.Scores))
			a.RecordHeartbeat(ctx, id)
		}
	}

	threshold := in.CriticalThreshold
	if threshold == 0 {
		threshold = scoring.DefaultCriticalThreshold
	}

	out := &AnalyzeSensitivityOutput{
		Analyses:       analyses,
		Explanations:   make([]domain.SensitivityExplanation, 0, len(analyses)),
		CriticalPoints: scoring.CriticalDecisionPoints(analyses, threshold),
	}
	for _, an := range analyses {
		out.Explanations = append(out.Explanations, scoring.Explain(an))
	}
	return out, nil
}

func validateTieBreaks(tbs []domain.TieBreak) error {
	var errs []error
	for i := range tbs {
		if err := tbs[i].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
