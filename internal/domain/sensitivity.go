package domain

// SensitivityLevel buckets how strongly a weight drives an initiative's score.
type SensitivityLevel string

// Sensitivity levels reported by explanations.
const (
	SensitivityHigh   SensitivityLevel = "high"
	SensitivityMedium SensitivityLevel = "medium"
	SensitivityLow    SensitivityLevel = "low"
)

// CriterionSensitivity is the sensitivity of one initiative to one criterion weight.
type CriterionSensitivity struct {
	CriterionID           string  `json:"criterion_id"`
	CurrentWeight         float64 `json:"current_weight"`
	ScoreChange           float64 `json:"score_change"`
	RankChangeProbability float64 `json:"rank_change_probability"`
	Impact                float64 `json:"impact"`
}

// SensitivityAnalysis lists criteria ordered by |scoreChange × weight|, descending.
type SensitivityAnalysis struct {
	InitiativeID string                 `json:"initiative_id"`
	BaseScore    float64                `json:"base_score"`
	BaseRank     int                    `json:"base_rank"`
	Criteria     []CriterionSensitivity `json:"criteria"`
}

// CriticalPoint is an initiative/criterion pair whose rank flips easily.
type CriticalPoint struct {
	InitiativeID          string  `json:"initiative_id"`
	CriterionID           string  `json:"criterion_id"`
	RankChangeProbability float64 `json:"rank_change_probability"`
}

// SensitivityExplanation is a human-readable summary of one analysis.
type SensitivityExplanation struct {
	InitiativeID string           `json:"initiative_id"`
	Level        SensitivityLevel `json:"level"`
	CriterionID  string           `json:"criterion_id,omitempty"`
	Summary      string           `json:"summary"`
}

// CriterionExposure is how strongly one initiative's score responds to one
// criterion weight.
type CriterionExposure struct {
	InitiativeID string  `json:"initiative_id"`
	CriterionID  string  `json:"criterion_id"`
	ScoreChange  float64 `json:"score_change"`
}
