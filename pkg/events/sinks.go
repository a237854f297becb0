package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// MemorySink keeps events in memory, dropping repeats of an idempotency key.
// It backs tests and the CLI's --events output.
type MemorySink struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	events []Envelope
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[string]struct{})}
}

// Append implements EventSink.
func (s *MemorySink) Append(ctx context.Context, envelope Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if envelope.IdempotencyKey == "" {
		return ErrMissingIdempotencyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[envelope.IdempotencyKey]; dup {
		return nil
	}
	s.seen[envelope.IdempotencyKey] = struct{}{}
	s.events = append(s.events, envelope)
	return nil
}

// Events returns a snapshot of stored envelopes in arrival order.
func (s *MemorySink) Events() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// OfType returns stored envelopes with the given type.
func (s *MemorySink) OfType(eventType string) []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Envelope
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink creates a sink that logs at level. A nil logger uses slog.Default.
func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "event_sink"), level: level}
}

// Append implements EventSink.
func (s *LogSink) Append(ctx context.Context, envelope Envelope) error {
	s.logger.Log(ctx, s.level, "event",
		"event_type", envelope.Type,
		"source", envelope.Source,
		"idempotency_key", envelope.IdempotencyKey,
		"workspace_id", envelope.WorkspaceID,
		"payload", string(envelope.Payload),
	)
	return nil
}

// FanOut appends to every sink, returning the first error after trying all.
type FanOut []EventSink

// Append implements EventSink.
func (f FanOut) Append(ctx context.Context, envelope Envelope) error {
	var first error
	for _, s := range f {
		if err := s.Append(ctx, envelope); err != nil && first == nil {
			first = err
		}
	}
	return first
}
