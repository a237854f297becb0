package main

import (
	"github.com/spf13/cobra"

	"github.com/ahrav/go-themis/internal/activity"
	"github.com/ahrav/go-themis/internal/domain"
)

func newDuplicatesCommand(a *app) *cobra.Command {
	var (
		input     string
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Find near-duplicate initiatives by embedding similarity",
		Long: `Find initiative pairs whose embeddings have cosine similarity at or above
the threshold. Initiatives without a precomputed embedding are embedded
with the configured provider.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var initiatives []domain.EmbeddableInitiative
			if err := readInput(cmd, input, &initiatives); err != nil {
				return err
			}

			acts, closer, err := a.activities(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closer()

			pairs, err := acts.DetectDuplicates(cmd.Context(), activity.DetectDuplicatesInput{
				WorkspaceID: a.workspace,
				Initiatives: initiatives,
				Threshold:   threshold,
			})
			if err != nil {
				return err
			}
			if pairs == nil {
				pairs = []domain.DuplicatePair{}
			}
			return a.write(cmd, pairs)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON or YAML file of initiatives (- for stdin)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "similarity threshold; defaults to the configured duplicate threshold")

	return cmd
}
