package scoring

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahrav/go-themis/internal/domain"
)

// GateEvaluator decides whether initiatives satisfy requirement gates.
type GateEvaluator struct {
	logger *slog.Logger
}

// NewGateEvaluator creates a gate evaluator.
func NewGateEvaluator() *GateEvaluator {
	return &GateEvaluator{logger: slog.Default().With("component", "gate_evaluator")}
}

// Evaluate runs one gate against ctx. Evaluation problems never propagate:
// they produce a failed result whose reason carries the diagnostic.
func (e *GateEvaluator) Evaluate(gate domain.RequirementGate, ctx Context) domain.GateResult {
	res := domain.GateResult{RequirementID: gate.ID, IsHard: gate.IsHard}

	passed, err := EvaluateExpression(gate.Expression, ctx)
	switch {
	case err != nil:
		res.Reason = "Evaluation error: " + err.Error()
		e.logger.Warn("gate evaluation failed", "requirement_id", gate.ID, "error", err)
	case !passed:
		res.Reason = "Failed requirement: " + gate.DisplayName()
	default:
		res.Passed = true
	}
	return res
}

// EvaluateAll evaluates every gate in order.
func (e *GateEvaluator) EvaluateAll(gates []domain.RequirementGate, ctx Context) []domain.GateResult {
	results := make([]domain.GateResult, 0, len(gates))
	for _, g := range gates {
		results = append(results, e.Evaluate(g, ctx))
	}
	return results
}

// Report evaluates every gate and classifies the failures.
func (e *GateEvaluator) Report(gates []domain.RequirementGate, ctx Context) domain.GateReport {
	return domain.NewGateReport(e.EvaluateAll(gates, ctx))
}

// PassesHardGates reports whether every hard gate in gates passed. A hard
// gate with no matching result counts as failed.
func PassesHardGates(results []domain.GateResult, gates []domain.RequirementGate) bool {
	passed := make(map[string]bool, len(results))
	for _, r := range results {
		passed[r.RequirementID] = r.Passed
	}
	for _, g := range gates {
		if g.IsHard && !passed[g.ID] {
			return false
		}
	}
	return true
}

// EvaluateExpression evaluates expr against ctx. Text that decodes as a JSON
// object is treated as JSON-logic; anything else goes through the textual
// parser. The result is coerced to a boolean.
func EvaluateExpression(expr string, ctx Context) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}
	if ctx == nil {
		ctx = Context{}
	}

	var node any
	if strings.HasPrefix(expr, "{") && json.Unmarshal([]byte(expr), &node) == nil {
		if _, ok := node.(map[string]any); ok {
			v, err := evalLogic(node, ctx)
			if err != nil {
				return false, err
			}
			return truthy(v), nil
		}
	}

	v, err := evalText(expr, ctx)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

var comparisonOps = map[string]bool{
	"==": true, "!=": true, ">": true, ">=": true, "<": true, "<=": true, "in": true,
}

// SimpleGate builds the JSON-logic expression `field op value`.
func SimpleGate(field, op string, value any) (string, error) {
	if field == "" {
		return "", fmt.Errorf("%w: field is required", ErrInvalidExpression)
	}
	if !comparisonOps[op] {
		return "", fmt.Errorf("%w: unsupported operator %q", ErrInvalidExpression, op)
	}
	out, err := json.Marshal(map[string]any{
		op: []any{map[string]any{"var": field}, value},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode gate: %w", err)
	}
	return string(out), nil
}

// AndGate combines JSON-logic expressions with "and".
func AndGate(conditions ...string) (string, error) { return combine("and", conditions) }

// OrGate combines JSON-logic expressions with "or".
func OrGate(conditions ...string) (string, error) { return combine("or", conditions) }

func combine(op string, conditions []string) (string, error) {
	if len(conditions) == 0 {
		return "", fmt.Errorf("%w: %s needs at least one condition", ErrInvalidExpression, op)
	}
	parts := make([]json.RawMessage, 0, len(conditions))
	for i, c := range conditions {
		if !json.Valid([]byte(c)) {
			return "", fmt.Errorf("%w: condition %d is not JSON-logic", ErrInvalidExpression, i)
		}
		parts = append(parts, json.RawMessage(c))
	}
	out, err := json.Marshal(map[string]any{op: parts})
	if err != nil {
		return "", fmt.Errorf("failed to encode gate: %w", err)
	}
	return string(out), nil
}
