package domain

// RequirementGate is a boolean expression evaluated against a context map.
// Expression is either JSON-logic ({"==": [{"var": "a.b"}, 1]}) or a textual
// expression such as `scores.compliance == true && budget < 100`.
type RequirementGate struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Expression  string `json:"expression" yaml:"expression" validate:"required"`
	IsHard      bool   `json:"is_hard" yaml:"is_hard"`
}

// Validate checks if the gate meets all requirements.
func (g *RequirementGate) Validate() error { return validate.Struct(g) }

// DisplayName returns the name, falling back to the ID.
func (g *RequirementGate) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	return g.ID
}

// GateResult is the verdict of a single gate.
type GateResult struct {
	RequirementID string `json:"requirement_id"`
	Passed        bool   `json:"passed"`
	IsHard        bool   `json:"is_hard"`
	Reason        string `json:"reason,omitempty"`
}

// GateReport summarises the evaluation of every gate for one initiative.
type GateReport struct {
	Results         []GateResult `json:"results"`
	PassesHardGates bool         `json:"passes_hard_gates"`
	HardFailures    []string     `json:"hard_failures,omitempty"`
	SoftFailures    []string     `json:"soft_failures,omitempty"`
}

// NewGateReport classifies results into hard and soft failures.
func NewGateReport(results []GateResult) GateReport {
	r := GateReport{Results: results, PassesHardGates: true}
	for _, res := range results {
		if res.Passed {
			continue
		}
		if res.IsHard {
			r.PassesHardGates = false
			r.HardFailures = append(r.HardFailures, res.RequirementID)
		} else {
			r.SoftFailures = append(r.SoftFailures, res.RequirementID)
		}
	}
	return r
}
