package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-themis/internal/worker"
)

func newPromptsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Inspect prompt templates",
	}
	cmd.AddCommand(newPromptsListCommand(a), newPromptsRenderCommand(a))
	return cmd
}

func newPromptsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered prompt templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := worker.NewPromptRegistry(a.cfg.PromptsDir)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVERSION\tVARIABLES")
			for _, t := range reg.List() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Version, strings.Join(t.Variables, ", "))
			}
			return w.Flush()
		},
	}
}

func newPromptsRenderCommand(a *app) *cobra.Command {
	var (
		vars    map[string]string
		version string
		system  bool
	)

	cmd := &cobra.Command{
		Use:     "render ID",
		Short:   "Render a prompt template with variables",
		Example: `  themis prompts render intent_capture --var userInput="Grow weekly active users"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := worker.NewPromptRegistry(a.cfg.PromptsDir)
			if err != nil {
				return err
			}

			if system {
				out, err := reg.SystemPrompt(args[0], version)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
				return err
			}

			rendered, err := reg.RenderPrompt(args[0], vars, version)
			if err != nil {
				return err
			}
			return a.write(cmd, rendered)
		},
	}

	cmd.Flags().StringToStringVar(&vars, "var", nil, "template variable as name=value (repeatable)")
	cmd.Flags().StringVar(&version, "template-version", "", "template version; defaults to the latest")
	cmd.Flags().BoolVar(&system, "system", false, "print only the template's system prompt")

	return cmd
}
