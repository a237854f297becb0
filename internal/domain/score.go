package domain

// NormalizationMethod maps raw scale values onto [0,1].
type NormalizationMethod string

const (
	// NormalizeLinear maps (value-min)/(max-min).
	NormalizeLinear NormalizationMethod = "linear"

	// NormalizeExponential raises the linear value to 0.8, emphasising high scores.
	NormalizeExponential NormalizationMethod = "exponential"
)

// AggregationMethod represents the statistical method used to collapse reviewer scores.
type AggregationMethod string

const (
	// AggregationMean calculates the arithmetic average.
	AggregationMean AggregationMethod = "mean"

	// AggregationMedian takes the middle value, averaging the two middles for even counts.
	AggregationMedian AggregationMethod = "median"

	// AggregationTrimmedMean drops floor(n·0.1) values from each end before averaging.
	AggregationTrimmedMean AggregationMethod = "trimmed_mean"
)

// String returns the string representation of the aggregation method.
func (m AggregationMethod) String() string { return string(m) }

// ScoreInput is one raw criterion value for an initiative.
type ScoreInput struct {
	CriterionID string   `json:"criterion_id" validate:"required"`
	Value       float64  `json:"value"`
	Weight      float64  `json:"weight" validate:"min=0,max=1"`
	Confidence  *float64 `json:"confidence,omitempty" validate:"omitempty,min=0,max=1"`
	ScaleMin    float64  `json:"scale_min,omitempty"`
	ScaleMax    float64  `json:"scale_max,omitempty"`
}

// Validate checks if the score input meets all requirements.
func (s *ScoreInput) Validate() error { return validate.Struct(s) }

// Scale returns the raw value bounds, defaulting to 1–5 when unset.
func (s *ScoreInput) Scale() (lo, hi float64) { return scaleOrDefault(s.ScaleMin, s.ScaleMax) }

// NewScoreInput builds a score input carrying a criterion's weight and scale.
func NewScoreInput(c Criterion, value float64) ScoreInput {
	return ScoreInput{
		CriterionID: c.ID,
		Value:       value,
		Weight:      c.Weight,
		ScaleMin:    c.ScaleMin,
		ScaleMax:    c.ScaleMax,
	}
}

// ReviewerScore is a single reviewer's raw value for one criterion.
type ReviewerScore struct {
	ReviewerID  string   `json:"reviewer_id"`
	CriterionID string   `json:"criterion_id" validate:"required"`
	Value       float64  `json:"value"`
	Confidence  *float64 `json:"confidence,omitempty" validate:"omitempty,min=0,max=1"`
}

// CriterionScore is the normalized, weighted result for one criterion.
type CriterionScore struct {
	CriterionID     string   `json:"criterion_id"`
	RawValue        float64  `json:"raw_value"`
	NormalizedValue float64  `json:"normalized_value"`
	Weight          float64  `json:"weight"`
	Contribution    float64  `json:"contribution"`
	Confidence      *float64 `json:"confidence,omitempty"`
}

// InitiativeScore is the overall score for one initiative.
type InitiativeScore struct {
	InitiativeID      string           `json:"initiative_id"`
	OverallScore      float64          `json:"overall_score"`
	RiskAdjustedScore *float64         `json:"risk_adjusted_score,omitempty"`
	Confidence        *float64         `json:"confidence,omitempty"`
	CriterionScores   []CriterionScore `json:"criterion_scores"`
}

// Criterion returns the score for a criterion ID.
func (s *InitiativeScore) Criterion(id string) (CriterionScore, bool) {
	for _, cs := range s.CriterionScores {
		if cs.CriterionID == id {
			return cs, true
		}
	}
	return CriterionScore{}, false
}

// Contribution returns a criterion's contribution, or zero if absent.
func (s *InitiativeScore) Contribution(id string) float64 {
	cs, _ := s.Criterion(id)
	return cs.Contribution
}

// ConfidenceOr returns the aggregated confidence or a fallback when absent.
func (s *InitiativeScore) ConfidenceOr(fallback float64) float64 {
	if s.Confidence == nil {
		return fallback
	}
	return *s.Confidence
}
