// Package events carries domain events out of the decision engine.
//
// Every event travels in an Envelope with routing and idempotency metadata;
// an EventSink decides where it goes. Emission is best-effort: a failing
// sink must never fail the scoring or generation call that produced the event.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is the schema version stamped on new envelopes.
const EnvelopeVersion = "1.0.0"

// Event types emitted by the engine.
const (
	TypeLLMUsage           = "llm.usage_recorded"
	TypeInitiativeScored   = "scoring.initiative_scored"
	TypeGatesEvaluated     = "scoring.gates_evaluated"
	TypeRankingProduced    = "scoring.ranking_produced"
	TypeInitiativesDrafted = "generation.initiatives_drafted"
	TypeDuplicatesFound    = "embedding.duplicates_found"
)

// ErrMissingIdempotencyKey is returned when an envelope cannot be deduplicated.
var ErrMissingIdempotencyKey = errors.New("envelope missing idempotency key")

// Envelope wraps a domain event payload with metadata for routing and
// deduplication.
type Envelope struct {
	// ID is unique per emission.
	ID string `json:"id"`

	// Type routes the event, e.g. "scoring.initiative_scored".
	Type string `json:"type"`

	// Source names the emitting component, e.g. "scoring-activity".
	Source string `json:"source"`

	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey is stable across retries of the same logical event.
	IdempotencyKey string `json:"idempotency_key"`

	// WorkspaceID scopes the event to one workspace; empty for global events.
	WorkspaceID string `json:"workspace_id,omitempty"`

	WorkflowID string `json:"workflow_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`

	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a new envelope stamped with a fresh ID,
// the current version and timestamp.
func NewEnvelope(eventType, source, idempotencyKey string, payload any) (Envelope, error) {
	if idempotencyKey == "" {
		return Envelope{}, ErrMissingIdempotencyKey
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		ID:             uuid.NewString(),
		Type:           eventType,
		Source:         source,
		Version:        EnvelopeVersion,
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
		Payload:        raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// EventSink delivers envelopes to downstream consumers: an outbox table, a
// queue, a log. Implementations treat a repeated idempotency key as a no-op
// and return quickly.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event.
type NoOpEventSink struct{}

// Append implements EventSink.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error { return nil }

// NewNoOpEventSink returns a sink that discards events.
func NewNoOpEventSink() EventSink { return &NoOpEventSink{} }
