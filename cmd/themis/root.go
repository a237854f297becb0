package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-themis/internal/activity"
	"github.com/ahrav/go-themis/internal/llm"
	"github.com/ahrav/go-themis/internal/llm/configuration"
	"github.com/ahrav/go-themis/internal/worker"
	"github.com/ahrav/go-themis/pkg/events"
)

var version = "dev"

// app carries state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	output     string
	workspace  string

	cfg *configuration.Config
	// llmOpts are passed to the LLM service; tests inject a provider here.
	llmOpts []llm.Option
}

func newRootCommand(opts ...llm.Option) *cobra.Command {
	a := &app{llmOpts: opts}

	cmd := &cobra.Command{
		Use:   "themis",
		Short: "Themis - initiative scoring and prioritization",
		Long: `Themis scores initiatives against weighted criteria, checks them against
requirement gates, ranks them, and explains how fragile the ranking is.

Scoring commands run locally and need no credentials. Generation and
duplicate detection call the configured LLM provider.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	flags.StringVarP(&a.output, "output", "o", "json", "output format: json or yaml")
	flags.StringVar(&a.workspace, "workspace", "", "workspace ID used for budget attribution and events")

	cmd.AddCommand(
		newScoreCommand(a),
		newRankCommand(a),
		newGatesCommand(a),
		newSensitivityCommand(a),
		newDuplicatesCommand(a),
		newPromptsCommand(a),
		newGenerateCommand(a),
		newPrioritizeCommand(a),
	)
	return cmd
}

// init loads configuration without requiring credentials and installs the
// default logger on stderr so stdout stays machine readable.
func (a *app) init(cmd *cobra.Command) error {
	_ = godotenv.Load()

	cfg, err := configuration.Read(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	slog.SetDefault(cfg.Logging.NewLogger(cmd.ErrOrStderr()))

	if a.output != "json" && a.output != "yaml" {
		return fmt.Errorf("unsupported output format %q", a.output)
	}
	a.cfg = cfg
	return nil
}

// activities builds the in-process activity set. Scoring needs no LLM; the
// rest require provider credentials unless a provider was injected.
func (a *app) activities(ctx context.Context, needLLM bool) (*activity.Activities, func() error, error) {
	if needLLM && len(a.llmOpts) == 0 && a.cfg.LLM.RequiresAPIKey() && a.cfg.LLM.APIKey == "" {
		return nil, nil, fmt.Errorf("%w: %s", configuration.ErrMissingAPIKey, a.cfg.LLM.Provider)
	}
	sink := events.NewLogSink(slog.Default(), slog.LevelDebug)
	return worker.Setup(ctx, a.cfg, sink, !needLLM, a.llmOpts...)
}

// scoringActivities is activities without an LLM service.
func (a *app) scoringActivities(ctx context.Context) (*activity.Activities, error) {
	acts, _, err := a.activities(ctx, false)
	return acts, err
}
