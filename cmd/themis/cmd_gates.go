package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-themis/internal/activity"
	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/scoring"
)

// gatesFile is the input document of the gates command.
type gatesFile struct {
	InitiativeID string                   `json:"initiative_id,omitempty"`
	Gates        []domain.RequirementGate `json:"gates"`
	Context      map[string]any           `json:"context"`
}

// expressionResult is printed by gates --expr.
type expressionResult struct {
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Error      string `json:"error,omitempty"`
}

func newGatesCommand(a *app) *cobra.Command {
	var (
		input string
		exprs []string
	)

	cmd := &cobra.Command{
		Use:   "gates",
		Short: "Evaluate requirement gates against an initiative context",
		Long: `Evaluate requirement gates against an initiative context.

Gate expressions are either JSON-logic objects or textual expressions such
as "scores.compliance == true && budget < 100". A gate whose expression
cannot be evaluated fails. With --expr the given expressions are evaluated
against the context instead of the file's gates.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var doc gatesFile
			if err := readInput(cmd, input, &doc); err != nil {
				return err
			}

			if len(exprs) > 0 {
				results := make([]expressionResult, 0, len(exprs))
				for _, e := range exprs {
					passed, err := scoring.EvaluateExpression(e, scoring.Context(doc.Context))
					r := expressionResult{Expression: e, Passed: passed}
					if err != nil {
						r.Error = err.Error()
					}
					results = append(results, r)
				}
				return a.write(cmd, results)
			}

			acts, err := a.scoringActivities(cmd.Context())
			if err != nil {
				return err
			}
			report, err := acts.EvaluateGates(cmd.Context(), activity.EvaluateGatesInput{
				WorkspaceID:  a.workspace,
				InitiativeID: doc.InitiativeID,
				Gates:        doc.Gates,
				Context:      doc.Context,
			})
			if err != nil {
				return err
			}
			return a.write(cmd, report)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON or YAML file with gates and context (- for stdin)")
	cmd.Flags().StringArrayVar(&exprs, "expr", nil, "evaluate an ad-hoc expression (repeatable)")

	cmd.AddCommand(newGatesBuildCommand())
	return cmd
}

func newGatesBuildCommand() *cobra.Command {
	var anyOf bool

	cmd := &cobra.Command{
		Use:   "build FIELD OP VALUE [FIELD OP VALUE...]",
		Short: "Build a JSON-logic gate expression",
		Long: `Build a JSON-logic gate expression from field/operator/value triples.

Values are parsed as JSON when possible and used as strings otherwise.
Multiple conditions are combined with "and", or with "or" when --any is set.`,
		Example: `  themis gates build scores.compliance == true
  themis gates build budget '<' 100 team in '["platform","growth"]' --any`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%3 != 0 {
				return fmt.Errorf("expected FIELD OP VALUE triples, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			conds := make([]string, 0, len(args)/3)
			for i := 0; i < len(args); i += 3 {
				c, err := scoring.SimpleGate(args[i], args[i+1], parseLiteral(args[i+2]))
				if err != nil {
					return err
				}
				conds = append(conds, c)
			}

			expr := conds[0]
			if len(conds) > 1 {
				combine := scoring.AndGate
				if anyOf {
					combine = scoring.OrGate
				}
				var err error
				if expr, err = combine(conds...); err != nil {
					return err
				}
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), expr)
			return err
		},
	}

	cmd.Flags().BoolVar(&anyOf, "any", false, "combine conditions with or instead of and")
	return cmd
}

// parseLiteral decodes JSON scalars and arrays, falling back to the raw string.
func parseLiteral(s string) any {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &v); err == nil {
		return v
	}
	return s
}
