package domain

// CriterionBrief is the name/description pair handed to generation prompts.
type CriterionBrief struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// InitiativeRequest asks for new initiative ideas.
type InitiativeRequest struct {
	ProjectID string           `json:"project_id"`
	Intent    string           `json:"intent" validate:"required"`
	Criteria  []CriterionBrief `json:"criteria" validate:"dive"`
	// Count defaults to 10.
	Count int `json:"count,omitempty" validate:"min=0"`
	// Diversity is used as the sampling temperature; defaults to 0.8.
	Diversity *float64 `json:"diversity,omitempty" validate:"omitempty,min=0,max=1"`
}

// Validate checks if the request meets all requirements.
func (r *InitiativeRequest) Validate() error { return validate.Struct(r) }

// GeneratedInitiative is one LLM-proposed initiative.
type GeneratedInitiative struct {
	Title           string   `json:"title" mapstructure:"title"`
	Description     string   `json:"description" mapstructure:"description"`
	Rationale       string   `json:"rationale" mapstructure:"rationale"`
	EstimatedImpact float64  `json:"estimatedImpact" mapstructure:"estimatedImpact"`
	Tags            []string `json:"tags" mapstructure:"tags"`
	Confidence      float64  `json:"confidence" mapstructure:"confidence"`
}

// Priority is impact × confidence.
func (g *GeneratedInitiative) Priority() float64 { return g.EstimatedImpact * g.Confidence }

// BriefSection names one section of a concept brief.
type BriefSection string

// Brief sections.
const (
	SectionExecutiveSummary BriefSection = "executiveSummary"
	SectionRationale        BriefSection = "rationale"
	SectionRisks            BriefSection = "risks"
	SectionMetrics          BriefSection = "metrics"
	SectionImagePrompt      BriefSection = "imagePrompt"
)

// BriefSections lists every section in display order.
var BriefSections = []BriefSection{
	SectionExecutiveSummary, SectionRationale, SectionRisks, SectionMetrics, SectionImagePrompt,
}

// WeightedCriterion is a criterion name and weight used in brief prompts.
type WeightedCriterion struct {
	Name   string  `json:"name" validate:"required"`
	Weight float64 `json:"weight" validate:"min=0,max=1"`
}

// BriefRequest asks for a concept brief of a scored initiative.
type BriefRequest struct {
	InitiativeID string              `json:"initiative_id"`
	Title        string              `json:"title" validate:"required"`
	Description  string              `json:"description"`
	Scores       map[string]float64  `json:"scores"`
	Criteria     []WeightedCriterion `json:"criteria" validate:"dive"`
}

// Validate checks if the request meets all requirements.
func (r *BriefRequest) Validate() error { return validate.Struct(r) }

// WeightedScore is the weight-normalized average of raw scores on the 1–5 scale.
func (r *BriefRequest) WeightedScore() float64 {
	var total, weights float64
	for _, c := range r.Criteria {
		total += r.Scores[c.Name] * c.Weight
		weights += c.Weight
	}
	if weights == 0 {
		return 0
	}
	return total / weights
}

// GeneratedBrief is a concept brief for an initiative.
type GeneratedBrief struct {
	ExecutiveSummary string `json:"executiveSummary" mapstructure:"executiveSummary"`
	Rationale        string `json:"rationale" mapstructure:"rationale"`
	Risks            string `json:"risks" mapstructure:"risks"`
	Metrics          string `json:"metrics" mapstructure:"metrics"`
	ImagePrompt      string `json:"imagePrompt" mapstructure:"imagePrompt"`
}

// Section returns the text of one section.
func (b *GeneratedBrief) Section(s BriefSection) string {
	switch s {
	case SectionExecutiveSummary:
		return b.ExecutiveSummary
	case SectionRationale:
		return b.Rationale
	case SectionRisks:
		return b.Risks
	case SectionMetrics:
		return b.Metrics
	case SectionImagePrompt:
		return b.ImagePrompt
	default:
		return ""
	}
}

// EnrichmentRequest asks for additional context on an initiative.
type EnrichmentRequest struct {
	Title        string   `json:"title" validate:"required"`
	Description  string   `json:"description"`
	ProjectGoals []string `json:"project_goals"`
	Criteria     []string `json:"criteria"`
}

// Validate checks if the request meets all requirements.
func (r *EnrichmentRequest) Validate() error { return validate.Struct(r) }

// EnrichedInitiative is the enrichment produced for an initiative.
type EnrichedInitiative struct {
	EnhancedDescription string   `json:"enhancedDescription" mapstructure:"enhancedDescription"`
	SuggestedTags       []string `json:"suggestedTags" mapstructure:"suggestedTags"`
	PotentialRisks      []string `json:"potentialRisks" mapstructure:"potentialRisks"`
	RelatedConcepts     []string `json:"relatedConcepts" mapstructure:"relatedConcepts"`
}

// RiskLevel is the coarse feasibility risk rating.
type RiskLevel string

// Risk levels.
const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// FeasibilityRequest asks for a feasibility assessment of an initiative.
type FeasibilityRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Constraints []string `json:"constraints,omitempty"`
}

// Validate checks if the request meets all requirements.
func (r *FeasibilityRequest) Validate() error { return validate.Struct(r) }

// FeasibilityReport scores how achievable an initiative is on a 0–100 scale.
type FeasibilityReport struct {
	OverallScore         float64   `json:"overallScore" mapstructure:"overallScore"`
	TechnicalFeasibility float64   `json:"technicalFeasibility" mapstructure:"technicalFeasibility"`
	ResourceAvailability float64   `json:"resourceAvailability" mapstructure:"resourceAvailability"`
	TimeToMarket         float64   `json:"timeToMarket" mapstructure:"timeToMarket"`
	RiskLevel            RiskLevel `json:"riskLevel" mapstructure:"riskLevel"`
	Blockers             []string  `json:"blockers" mapstructure:"blockers"`
	Recommendations      []string  `json:"recommendations" mapstructure:"recommendations"`
	EstimatedDuration    string    `json:"estimatedDuration" mapstructure:"estimatedDuration"`
	EstimatedCost        string    `json:"estimatedCost" mapstructure:"estimatedCost"`
}

// CapturedIntent is the structured form of a free-text project intent.
type CapturedIntent struct {
	Goal       string   `json:"goal" mapstructure:"goal"`
	Launch     string   `json:"launch" mapstructure:"launch"`
	Objectives []string `json:"objectives" mapstructure:"objectives"`
}
