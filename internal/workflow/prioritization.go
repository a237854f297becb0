package workflow

import (
	"time"

	"github.com/go-playground/validator/v10"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-themis/internal/activity"
	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/scoring"
)

// DefaultActivityTimeout bounds each activity when the request sets none.
const DefaultActivityTimeout = 2 * time.Minute

// scoreContextKey is where an initiative's own score is exposed to gates.
const scoreContextKey = "score"

var validate = validator.New()

// InitiativeInput is one initiative to prioritize. Either Inputs or Reviews
// carries its raw criterion values.
type InitiativeInput struct {
	ID          string                 `json:"id" validate:"required"`
	Inputs      []domain.ScoreInput    `json:"inputs,omitempty" validate:"dive"`
	Reviews     []domain.ReviewerScore `json:"reviews,omitempty" validate:"dive"`
	RiskIndex   *float64               `json:"risk_index,omitempty"`
	GateContext map[string]any         `json:"gate_context,omitempty"`
}

// PrioritizationRequest scores, gates and ranks a set of initiatives.
type PrioritizationRequest struct {
	WorkspaceID string                   `json:"workspace_id"`
	Initiatives []InitiativeInput        `json:"initiatives" validate:"required,min=1,dive"`
	Criteria    []domain.Criterion       `json:"criteria,omitempty" validate:"dive"`
	Gates       []domain.RequirementGate `json:"gates,omitempty" validate:"dive"`
	Scoring     scoring.Config           `json:"scoring"`
	TieBreaks   []domain.TieBreak        `json:"tie_breaks,omitempty" validate:"dive"`
	MinScore    *float64                 `json:"min_score,omitempty"`
	Top         int                      `json:"top,omitempty" validate:"min=0"`
	// Sensitivity adds a weight sensitivity analysis of the final ranking.
	Sensitivity    bool `json:"sensitivity,omitempty"`
	TimeoutSeconds int  `json:"timeout_seconds,omitempty" validate:"min=0"`
}

// Validate checks if the request meets all requirements.
func (r *PrioritizationRequest) Validate() error { return validate.Struct(r) }

// PrioritizationResult is the outcome of a prioritization run.
type PrioritizationResult struct {
	Scores []domain.InitiativeScore `json:"scores"`
	// GateReports is keyed by initiative ID; empty when no gates were given.
	GateReports map[string]domain.GateReport `json:"gate_reports,omitempty"`
	// Excluded lists initiatives that failed a hard gate, in input order.
	Excluded    []string                           `json:"excluded,omitempty"`
	Ranking     []domain.RankingResult             `json:"ranking"`
	Sensitivity *activity.AnalyzeSensitivityOutput `json:"sensitivity,omitempty"`
}

// PrioritizationWorkflow scores every initiative, drops those failing a hard
// gate, and ranks the rest. Scoring and gate evaluation fan out per
// initiative; results are collected in input order.
func PrioritizationWorkflow(
	ctx workflow.Context,
	req PrioritizationRequest,
) (*PrioritizationResult, error) {
	// Version gate enables safe evolution and backward compatibility.
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "prioritization.v", workflow.DefaultVersion, currentVersion)

	if err := req.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"invalid prioritization request",
			activity.TypeValidation,
			err,
		)
	}

	timeout := DefaultActivityTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	var a *activity.Activities

	scoreFutures := make([]workflow.Future, len(req.Initiatives))
	for i, in := range req.Initiatives {
		scoreFutures[i] = workflow.ExecuteActivity(ctx, a.ScoreInitiative, activity.ScoreInitiativeInput{
			WorkspaceID:  req.WorkspaceID,
			InitiativeID: in.ID,
			Inputs:       in.Inputs,
			Reviews:      in.Reviews,
			Criteria:     req.Criteria,
			RiskIndex:    in.RiskIndex,
			Config:       req.Scoring,
		})
	}
	scores := make([]domain.InitiativeScore, len(req.Initiatives))
	for i, f := range scoreFutures {
		if err := f.Get(ctx, &scores[i]); err != nil {
			return nil, err
		}
	}

	result := &PrioritizationResult{Scores: scores}
	eligible := scores
	if len(req.Gates) > 0 {
		gateFutures := make([]workflow.Future, len(req.Initiatives))
		for i, in := range req.Initiatives {
			gateFutures[i] = workflow.ExecuteActivity(ctx, a.EvaluateGates, activity.EvaluateGatesInput{
				WorkspaceID:  req.WorkspaceID,
				InitiativeID: in.ID,
				Gates:        req.Gates,
				Context:      gateContext(in.GateContext, scores[i]),
			})
		}

		result.GateReports = make(map[string]domain.GateReport, len(req.Initiatives))
		eligible = make([]domain.InitiativeScore, 0, len(scores))
		for i, f := range gateFutures {
			var report domain.GateReport
			if err := f.Get(ctx, &report); err != nil {
				return nil, err
			}
			id := req.Initiatives[i].ID
			result.GateReports[id] = report
			if !report.PassesHardGates {
				result.Excluded = append(result.Excluded, id)
				continue
			}
			eligible = append(eligible, scores[i])
		}
		if len(result.Excluded) > 0 {
			logger.Info("initiatives excluded by hard gates", "count", len(result.Excluded))
		}
	}

	err := workflow.ExecuteActivity(ctx, a.Rank, activity.RankInput{
		WorkspaceID: req.WorkspaceID,
		Scores:      eligible,
		TieBreaks:   req.TieBreaks,
		MinScore:    req.MinScore,
		Top:         req.Top,
	}).Get(ctx, &result.Ranking)
	if err != nil {
		return nil, err
	}

	if req.Sensitivity && len(eligible) > 1 {
		var out activity.AnalyzeSensitivityOutput
		err := workflow.ExecuteActivity(ctx, a.AnalyzeSensitivity, activity.AnalyzeSensitivityInput{
			WorkspaceID: req.WorkspaceID,
			Scores:      eligible,
			TieBreaks:   req.TieBreaks,
		}).Get(ctx, &out)
		if err != nil {
			return nil, err
		}
		result.Sensitivity = &out
	}

	logger.Info("prioritization complete",
		"initiatives", len(req.Initiatives),
		"ranked", len(result.Ranking),
	)
	return result, nil
}

// gateContext exposes the initiative's computed score to its gates under
// "score" unless the caller already supplied that key.
func gateContext(base map[string]any, s domain.InitiativeScore) map[string]any {
	ctx := make(map[string]any, len(base)+1)
	for k, v := range base {
		ctx[k] = v
	}
	if _, ok := ctx[scoreContextKey]; ok {
		return ctx
	}

	criteria := make(map[string]any, len(s.CriterionScores))
	for _, cs := range s.CriterionScores {
		criteria[cs.CriterionID] = cs.NormalizedValue
	}
	score := map[string]any{
		"overall":  s.OverallScore,
		"criteria": criteria,
	}
	if s.RiskAdjustedScore != nil {
		score["risk_adjusted"] = *s.RiskAdjustedScore
	}
	ctx[scoreContextKey] = score
	return ctx
}
