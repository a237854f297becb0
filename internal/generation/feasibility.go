package generation

import (
	"context"
	"strings"

	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/llm/prompts"
)

var feasibilityDecoder = mustDecoder[domain.FeasibilityReport]("feasibility")

// FeasibilityChecker estimates how achievable an initiative is.
type FeasibilityChecker struct {
	base
}

// NewFeasibilityChecker creates a FeasibilityChecker.
func NewFeasibilityChecker(llm Completer, registry *prompts.Registry) (*FeasibilityChecker, error) {
	b, err := newBase(llm, registry, "feasibility")
	if err != nil {
		return nil, err
	}
	return &FeasibilityChecker{base: b}, nil
}

// Check returns a 0–100 feasibility report.
func (c *FeasibilityChecker) Check(ctx context.Context, req domain.FeasibilityRequest) (domain.FeasibilityReport, error) {
	if err := req.Validate(); err != nil {
		return domain.FeasibilityReport{}, invalidRequest(err)
	}

	var constraints string
	if len(req.Constraints) > 0 {
		constraints = "Constraints:\n- " + strings.Join(req.Constraints, "\n- ")
	}

	content, err := c.completeTemplate(ctx, prompts.FeasibilityCheck, map[string]string{
		"title":       req.Title,
		"description": req.Description,
		"constraints": constraints,
	}, feasibilityTemperature, feasibilityMaxTokens)
	if err != nil {
		return domain.FeasibilityReport{}, err
	}

	result := feasibilityDecoder.Decode(content)
	if !result.IsOk() {
		return domain.FeasibilityReport{}, decodeFailed(ctx, c.logger, "feasibility check", result)
	}
	report, _ := result.Value()
	return report, nil
}
