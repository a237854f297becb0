package domain

// SortDirection orders tie-break comparisons.
type SortDirection string

const (
	// SortDesc prefers the larger contribution.
	SortDesc SortDirection = "desc"

	// SortAsc prefers the smaller contribution.
	SortAsc SortDirection = "asc"
)

// TieBreak compares two near-equal initiatives on one criterion's contribution.
type TieBreak struct {
	CriterionID string        `json:"criterion_id" validate:"required"`
	Direction   SortDirection `json:"direction" validate:"omitempty,oneof=asc desc"`
}

// Validate checks if the tie-break meets all requirements.
func (t *TieBreak) Validate() error { return validate.Struct(t) }

// Contribution pairs a criterion with its share of the overall score.
type Contribution struct {
	CriterionID  string  `json:"criterion_id"`
	Contribution float64 `json:"contribution"`
}

// Explanation describes why an initiative scored as it did.
type Explanation struct {
	TopCriteria   []Contribution     `json:"top_criteria"`
	Contributions map[string]float64 `json:"contributions"`
}

// RankingResult is one ranked initiative.
type RankingResult struct {
	InitiativeID string      `json:"initiative_id"`
	Rank         int         `json:"rank"`
	Score        float64     `json:"score"`
	Explanation  Explanation `json:"explanation"`
}

// RankChange reports how an initiative's rank moves under hypothetical weights.
// Change is CurrentRank - NewRank, so positive values mean the initiative moved up.
type RankChange struct {
	InitiativeID string  `json:"initiative_id"`
	CurrentRank  int     `json:"current_rank"`
	NewRank      int     `json:"new_rank"`
	Change       int     `json:"change"`
	NewScore     float64 `json:"new_score"`
}
