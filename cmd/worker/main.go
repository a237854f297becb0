// Command worker runs a Temporal worker serving the prioritization workflow
// and every themis activity.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-themis/internal/llm/configuration"
	"github.com/ahrav/go-themis/internal/worker"
	"github.com/ahrav/go-themis/pkg/events"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath  string
		scoringOnly bool
	)
	cmd := &cobra.Command{
		Use:          "worker",
		Short:        "Run the themis Temporal worker",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, scoringOnly)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().BoolVar(&scoringOnly, "scoring-only", false, "serve scoring activities without an LLM provider")
	return cmd
}

func run(parent context.Context, configPath string, scoringOnly bool) error {
	_ = godotenv.Load()

	load := configuration.Load
	if scoringOnly {
		load = configuration.Read
	}
	cfg, err := load(configPath)
	if err != nil {
		return err
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := events.NewLogSink(logger, slog.LevelInfo)
	acts, closeDeps, err := worker.Setup(ctx, cfg, sink, scoringOnly)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDeps(); err != nil {
			logger.Warn("failed to close dependencies", "error", err)
		}
	}()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    sdklog.NewStructuredLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to temporal at %s: %w", cfg.Temporal.HostPort, err)
	}
	defer c.Close()

	w := sdkworker.New(c, cfg.Temporal.TaskQueue, sdkworker.Options{})
	worker.RegisterAll(w, acts)

	logger.Info("worker starting",
		"task_queue", cfg.Temporal.TaskQueue,
		"namespace", cfg.Temporal.Namespace,
		"scoring_only", scoringOnly,
	)

	interrupt := make(chan any)
	go func() {
		<-ctx.Done()
		close(interrupt)
	}()
	if err := w.Run(interrupt); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	return nil
}
