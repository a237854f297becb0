package events

import (
	"context"
	"log/slog"

	"github.com/ahrav/go-themis/internal/domain"
)

// UsageSource is the envelope source for LLM usage records.
const UsageSource = "llm-service"

// UsageEnvelope wraps one usage record. The record ID doubles as the
// idempotency key, so re-emitting the same record is harmless.
func UsageEnvelope(m domain.UsageMetrics) (Envelope, error) {
	env, err := NewEnvelope(TypeLLMUsage, UsageSource, "usage:"+m.ID, m)
	if err != nil {
		return Envelope{}, err
	}
	env.WorkspaceID = m.WorkspaceID
	return env, nil
}

// UsageRecorder adapts sink into a recorder for the LLM service. Sink
// failures are logged and swallowed.
func UsageRecorder(ctx context.Context, sink EventSink) domain.UsageRecorder {
	logger := slog.Default().With("component", "usage_recorder")
	return func(m domain.UsageMetrics) {
		env, err := UsageEnvelope(m)
		if err == nil {
			err = sink.Append(ctx, env)
		}
		if err != nil {
			logger.Warn("failed to emit usage event", "usage_id", m.ID, "error", err)
		}
	}
}
