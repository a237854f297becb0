package domain

// CriterionKind separates weighted scoring dimensions from pass/fail requirements.
type CriterionKind string

const (
	// CriterionSoft contributes weight × normalized value to the overall score.
	CriterionSoft CriterionKind = "soft"

	// CriterionHard carries no weight, only pass/fail semantics.
	CriterionHard CriterionKind = "hard"
)

// Default raw score scale.
const (
	DefaultScaleMin = 1.0
	DefaultScaleMax = 5.0
)

// Criterion is one dimension initiatives are judged on.
// Soft weights are expected to sum to 1 across a project; this is not enforced here.
type Criterion struct {
	ID        string        `json:"id" yaml:"id" validate:"required"`
	Name      string        `json:"name" yaml:"name"`
	Weight    float64       `json:"weight" yaml:"weight" validate:"min=0,max=1"`
	Kind      CriterionKind `json:"kind" yaml:"kind" validate:"omitempty,oneof=soft hard"`
	Threshold *float64      `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	ScaleMin  float64       `json:"scale_min,omitempty" yaml:"scale_min,omitempty"`
	ScaleMax  float64       `json:"scale_max,omitempty" yaml:"scale_max,omitempty"`
}

// Validate checks if the criterion meets all requirements.
func (c *Criterion) Validate() error { return validate.Struct(c) }

// IsHard reports whether the criterion is a pass/fail requirement.
func (c *Criterion) IsHard() bool { return c.Kind == CriterionHard }

// Scale returns the raw value bounds, defaulting to 1–5 when unset.
func (c *Criterion) Scale() (lo, hi float64) { return scaleOrDefault(c.ScaleMin, c.ScaleMax) }

// MeetsThreshold reports whether a raw value satisfies the optional minimum.
func (c *Criterion) MeetsThreshold(value float64) bool {
	return c.Threshold == nil || value >= *c.Threshold
}

func scaleOrDefault(lo, hi float64) (float64, float64) {
	if lo == 0 && hi == 0 {
		return DefaultScaleMin, DefaultScaleMax
	}
	return lo, hi
}

// WeightMap extracts soft criterion weights keyed by criterion ID.
func WeightMap(criteria []Criterion) map[string]float64 {
	out := make(map[string]float64, len(criteria))
	for _, c := range criteria {
		if c.IsHard() {
			continue
		}
		out[c.ID] = c.Weight
	}
	return out
}
