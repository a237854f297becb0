package main

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"

	"github.com/ahrav/go-themis/internal/workflow"
)

func newPrioritizeCommand(a *app) *cobra.Command {
	var (
		input      string
		workflowID string
		noWait     bool
	)

	cmd := &cobra.Command{
		Use:   "prioritize",
		Short: "Run the prioritization workflow on Temporal",
		Long: `Submit a prioritization request to the Temporal cluster configured under
"temporal" and print the result. A worker must be serving the task queue.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req workflow.PrioritizationRequest
			if err := readInput(cmd, input, &req); err != nil {
				return err
			}
			if req.WorkspaceID == "" {
				req.WorkspaceID = a.workspace
			}
			if err := req.Validate(); err != nil {
				return fmt.Errorf("invalid request: %w", err)
			}

			tc := a.cfg.Temporal
			c, err := client.Dial(client.Options{
				HostPort:  tc.HostPort,
				Namespace: tc.Namespace,
				Logger:    sdklog.NewStructuredLogger(slog.Default()),
			})
			if err != nil {
				return fmt.Errorf("failed to connect to temporal at %s: %w", tc.HostPort, err)
			}
			defer c.Close()

			if workflowID == "" {
				workflowID = "prioritize-" + uuid.NewString()
			}
			run, err := c.ExecuteWorkflow(cmd.Context(), client.StartWorkflowOptions{
				ID:        workflowID,
				TaskQueue: tc.TaskQueue,
			}, workflow.PrioritizationWorkflow, req)
			if err != nil {
				return fmt.Errorf("failed to start workflow: %w", err)
			}
			slog.Info("workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

			if noWait {
				return a.write(cmd, map[string]string{"workflow_id": run.GetID(), "run_id": run.GetRunID()})
			}

			var result workflow.PrioritizationResult
			if err := run.Get(cmd.Context(), &result); err != nil {
				return err
			}
			return a.write(cmd, result)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON or YAML prioritization request (- for stdin)")
	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "workflow ID; defaults to a random one")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "print the workflow IDs without waiting for the result")

	return cmd
}
