// Package worker wires configuration into activities and registers them,
// together with the workflows, on a Temporal worker.
package worker

import (
	"github.com/ahrav/go-themis/internal/activity"
	"github.com/ahrav/go-themis/internal/workflow"
)

// Registry is the registration surface of a Temporal worker. Both
// worker.Worker and the SDK test environments satisfy it.
type Registry interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
}

// RegisterAll registers all workflows and activities with the Temporal worker.
// It must be called once during worker initialization before the worker starts.
func RegisterAll(w Registry, acts *activity.Activities) {
	w.RegisterWorkflow(workflow.PrioritizationWorkflow)

	// Scoring.
	w.RegisterActivity(acts.ScoreInitiative)
	w.RegisterActivity(acts.EvaluateGates)
	w.RegisterActivity(acts.Rank)
	w.RegisterActivity(acts.WhatIf)
	w.RegisterActivity(acts.AnalyzeSensitivity)

	// Generation.
	w.RegisterActivity(acts.GenerateInitiatives)
	w.RegisterActivity(acts.GenerateBrief)
	w.RegisterActivity(acts.EnrichInitiative)
	w.RegisterActivity(acts.CheckFeasibility)
	w.RegisterActivity(acts.CaptureIntent)

	// Embedding.
	w.RegisterActivity(acts.DetectDuplicates)
}
