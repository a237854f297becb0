package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-themis/internal/activity"
	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/scoring"
)

func newSensitivityCommand(a *app) *cobra.Command {
	var (
		input       string
		initiatives []string
		tieBreaks   []string
		threshold   float64
		criterion   string
		explain     bool
	)

	cmd := &cobra.Command{
		Use:   "sensitivity",
		Short: "Analyze how ranks respond to weight changes",
		Long: `Analyze how each initiative's rank responds to small changes in criterion
weights, and list the initiative/criterion pairs most likely to flip the
ranking.

--criterion lists initiatives by exposure to one criterion; --explain prints
plain-text summaries instead of structured output.`,
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
			out, err := acts.AnalyzeSensitivity(cmd.Context(), activity.AnalyzeSensitivityInput{
				WorkspaceID:       a.workspace,
				Scores:            scores,
				TieBreaks:         tbs,
				InitiativeIDs:     initiatives,
				CriticalThreshold: threshold,
			})
			if err != nil {
				return err
			}

			switch {
			case criterion != "":
				return a.write(cmd, scoring.MostSensitiveTo(out.Analyses, criterion))
			case explain:
				w := cmd.OutOrStdout()
				for _, ex := range out.Explanations {
					if _, err := fmt.Fprintf(w, "%s\n%s\n\n", ex.InitiativeID, ex.Summary); err != nil {
						return err
					}
				}
				return nil
			default:
				return a.write(cmd, out)
			}
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON or YAML file of initiative scores (- for stdin)")
	cmd.Flags().StringSliceVar(&initiatives, "initiative", nil, "limit the analysis to these initiative IDs")
	cmd.Flags().StringSliceVar(&tieBreaks, "tie-break", nil, "tie-break criteria as criterion[:asc|desc]")
	cmd.Flags().Float64Var(&threshold, "critical-threshold", scoring.DefaultCriticalThreshold, "rank change probability marking a critical point")
	cmd.Flags().StringVar(&criterion, "criterion", "", "list initiatives by exposure to this criterion")
	cmd.Flags().BoolVar(&explain, "explain", false, "print plain-text explanations")

	return cmd
}
