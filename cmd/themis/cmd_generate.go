package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-themis/internal/activity"
	"github.com/ahrav/go-themis/internal/domain"
)

func newGenerateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run LLM-backed generation tasks",
		Long: `Run LLM-backed generation tasks against the configured provider.

Every call is subject to the configured rate limit and token budget, and is
attributed to --workspace.`,
	}
	cmd.AddCommand(
		newGenerateInitiativesCommand(a),
		newGenerateBriefCommand(a),
		newGenerateEnrichCommand(a),
		newGenerateFeasibilityCommand(a),
		newGenerateIntentCommand(a),
	)
	return cmd
}

// withLLM runs fn with an LLM-backed activity set and releases it afterwards.
func (a *app) withLLM(ctx context.Context, fn func(*activity.Activities) (any, error)) (any, error) {
	acts, closer, err := a.activities(ctx, true)
	if err != nil {
		return nil, err
	}
	defer closer()
	return fn(acts)
}

func newGenerateInitiativesCommand(a *app) *cobra.Command {
	var (
		input         string
		batchSize     int
		minImpact     float64
		minConfidence float64
	)

	cmd := &cobra.Command{
		Use:   "initiatives",
		Short: "Draft initiative ideas for a project intent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req domain.InitiativeRequest
			if err := readInput(cmd, input, &req); err != nil {
				return err
			}
			out, err := a.withLLM(cmd.Context(), func(acts *activity.Activities) (any, error) {
				return acts.GenerateInitiatives(cmd.Context(), activity.GenerateInitiativesInput{
					WorkspaceID:   a.workspace,
					Request:       req,
					BatchSize:     batchSize,
					MinImpact:     minImpact,
					MinConfidence: minConfidence,
				})
			})
			if err != nil {
				return err
			}
			return a.write(cmd, out)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON or YAML initiative request (- for stdin)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "split large counts into concurrent requests of this size")
	cmd.Flags().Float64Var(&minImpact, "min-impact", 0, "drop ideas with a lower estimated impact")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "drop ideas with a lower confidence")
	return cmd
}

func newGenerateBriefCommand(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "brief",
		Short: "Write a concept brief for a scored initiative",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req domain.BriefRequest
			if err := readInput(cmd, input, &req); err != nil {
				return err
			}
			out, err := a.withLLM(cmd.Context(), func(acts *activity.Activities) (any, error) {
				return acts.GenerateBrief(cmd.Context(), activity.GenerateBriefInput{WorkspaceID: a.workspace, Request: req})
			})
			if err != nil {
				return err
			}
			return a.write(cmd, out)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON or YAML brief request (- for stdin)")
	return cmd
}

func newGenerateEnrichCommand(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Expand an initiative with details, tags and risks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req domain.EnrichmentRequest
			if err := readInput(cmd, input, &req); err != nil {
				return err
			}
			out, err := a.withLLM(cmd.Context(), func(acts *activity.Activities) (any, error) {
				return acts.EnrichInitiative(cmd.Context(), activity.EnrichInitiativeInput{WorkspaceID: a.workspace, Request: req})
			})
			if err != nil {
				return err
			}
			return a.write(cmd, out)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON or YAML enrichment request (- for stdin)")
	return cmd
}

func newGenerateFeasibilityCommand(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "feasibility",
		Short: "Assess how achievable an initiative is",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req domain.FeasibilityRequest
			if err := readInput(cmd, input, &req); err != nil {
				return err
			}
			out, err := a.withLLM(cmd.Context(), func(acts *activity.Activities) (any, error) {
				return acts.CheckFeasibility(cmd.Context(), activity.CheckFeasibilityInput{WorkspaceID: a.workspace, Request: req})
			})
			if err != nil {
				return err
			}
			return a.write(cmd, out)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON or YAML feasibility request (- for stdin)")
	return cmd
}

func newGenerateIntentCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "intent TEXT...",
		Short:   "Structure a free-text project intent",
		Example: `  themis generate intent "We want more teams to adopt the new billing flow"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			out, err := a.withLLM(cmd.Context(), func(acts *activity.Activities) (any, error) {
				return acts.CaptureIntent(cmd.Context(), activity.CaptureIntentInput{WorkspaceID: a.workspace, Text: text})
			})
			if err != nil {
				return err
			}
			return a.write(cmd, out)
		},
	}
}
