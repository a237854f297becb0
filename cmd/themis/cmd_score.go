package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-themis/internal/activity"
	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/scoring"
	"github.com/ahrav/go-themis/internal/workflow"
)

// scoreFile is the input document of the score command.
type scoreFile struct {
	Scoring     scoring.Config             `json:"scoring"`
	Criteria    []domain.Criterion         `json:"criteria,omitempty"`
	Initiatives []workflow.InitiativeInput `json:"initiatives"`
}

func newScoreCommand(a *app) *cobra.Command {
	var (
		input         string
		normalization string
		aggregation   string
		riskAdjust    bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute weighted scores for initiatives",
		Long: `Compute the weighted overall score of each initiative.

Each initiative supplies either direct criterion inputs or reviewer scores;
reviewer scores are aggregated per criterion against the criteria list.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var doc scoreFile
			if err := readInput(cmd, input, &doc); err != nil {
				return err
			}
			if normalization != "" {
				doc.Scoring.Normalization = domain.NormalizationMethod(strings.ToLower(normalization))
			}
			if aggregation != "" {
				doc.Scoring.Aggregation = domain.AggregationMethod(strings.ToLower(aggregation))
			}
			if cmd.Flags().Changed("risk-adjust") {
				doc.Scoring.RiskAdjustment = riskAdjust
			}

			acts, err := a.scoringActivities(cmd.Context())
			if err != nil {
				return err
			}

			scores := make([]domain.InitiativeScore, 0, len(doc.Initiatives))
			for _, in := range doc.Initiatives {
				s, err := acts.ScoreInitiative(cmd.Context(), activity.ScoreInitiativeInput{
					WorkspaceID:  a.workspace,
					InitiativeID: in.ID,
					Inputs:       in.Inputs,
					Reviews:      in.Reviews,
					Criteria:     doc.Criteria,
					RiskIndex:    in.RiskIndex,
					Config:       doc.Scoring,
				})
				if err != nil {
					return fmt.Errorf("scoring %s: %w", in.ID, err)
				}
				scores = append(scores, *s)
			}
			return a.write(cmd, scores)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON or YAML file of initiatives (- for stdin)")
	cmd.Flags().StringVar(&normalization, "normalization", "", "override normalization: linear or exponential")
	cmd.Flags().StringVar(&aggregation, "aggregation", "", "override aggregation: mean, median or trimmed_mean")
	cmd.Flags().BoolVar(&riskAdjust, "risk-adjust", false, "apply the risk penalty to scores with a risk index")

	return cmd
}

func newRankCommand(a *app) *cobra.Command {
	var (
		input     string
		top       int
		minScore  float64
		tieBreaks []string
		whatIf    map[string]string
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank scored initiatives",
		Long: `Rank scored initiatives with dense ranks.

Near-ties are broken by the --tie-break criteria in order (criterion or
criterion:asc), then by confidence. With --what-if the command reports how
each rank would move under the given weights instead.`,
		Example: `  themis score -i initiatives.yaml > scores.json
  themis rank -i scores.json --top 5 --tie-break impact
  themis rank -i scores.json --what-if impact=0.7 --what-if cost=0.3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var scores []domain.InitiativeScore
			if err := readInput(cmd, input, &scores); err != nil {
				return err
			}
			tbs, err := parseTieBreaks(tieBreaks)
			if err != nil {
				return err
			}

			acts, err := a.scoringActivities(cmd.Context())
			if err != nil {
				return err
			}

			if len(whatIf) > 0 {
				weights, err := parseWeights(whatIf)
				if err != nil {
					return err
				}
				changes, err := acts.WhatIf(cmd.Context(), activity.WhatIfInput{
					Scores:    scores,
					TieBreaks: tbs,
					Weights:   weights,
				})
				if err != nil {
					return err
				}
				return a.write(cmd, changes)
			}

			in := activity.RankInput{
				WorkspaceID: a.workspace,
				Scores:      scores,
				TieBreaks:   tbs,
				Top:         top,
			}
			if cmd.Flags().Changed("min-score") {
				in.MinScore = &minScore
			}
			results, err := acts.Rank(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.write(cmd, results)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON or YAML file of initiative scores (- for stdin)")
	cmd.Flags().IntVar(&top, "top", 0, "keep only the first N initiatives")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "drop initiatives scoring below this value")
	cmd.Flags().StringSliceVar(&tieBreaks, "tie-break", nil, "tie-break criteria as criterion[:asc|desc]")
	cmd.Flags().StringToStringVar(&whatIf, "what-if", nil, "hypothetical weights as criterion=weight")

	return cmd
}

func parseTieBreaks(specs []string) ([]domain.TieBreak, error) {
	out := make([]domain.TieBreak, 0, len(specs))
	for _, spec := range specs {
		id, dir, _ := strings.Cut(spec, ":")
		tb := domain.TieBreak{CriterionID: strings.TrimSpace(id), Direction: domain.SortDirection(strings.ToLower(dir))}
		if err := tb.Validate(); err != nil {
			return nil, fmt.Errorf("invalid tie-break %q: %w", spec, err)
		}
		out = append(out, tb)
	}
	return out, nil
}
