package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-themis/internal/domain"
)

type failingSink struct{ calls int }

func (f *failingSink) Append(context.Context, Envelope) error {
	f.calls++
	return errors.New("sink down")
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(TypeInitiativeScored, "scoring-activity", "score:a", map[string]any{"score": 0.8})
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Equal(t, "score:a", env.IdempotencyKey)
	assert.WithinDuration(t, time.Now(), env.Timestamp, time.Minute)

	var payload struct {
		Score float64 `json:"score"`
	}
	require.NoError(t, env.Decode(&payload))
	assert.Equal(t, 0.8, payload.Score)

	_, err = NewEnvelope(TypeInitiativeScored, "x", "", nil)
	require.ErrorIs(t, err, ErrMissingIdempotencyKey)

	_, err = NewEnvelope(TypeInitiativeScored, "x", "k", make(chan int))
	require.Error(t, err)
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()

	first, err := NewEnvelope(TypeRankingProduced, "test", "rank:1", nil)
	require.NoError(t, err)
	retry := first
	retry.ID = "another-id"
	other, err := NewEnvelope(TypeGatesEvaluated, "test", "gates:1", nil)
	require.NoError(t, err)

	require.NoError(t, sink.Append(ctx, first))
	require.NoError(t, sink.Append(ctx, retry))
	require.NoError(t, sink.Append(ctx, other))

	got := sink.Events()
	require.Len(t, got, 2, "repeated idempotency key is a no-op")
	assert.Equal(t, first.ID, got[0].ID)
	assert.Len(t, sink.OfType(TypeGatesEvaluated), 1)

	require.ErrorIs(t, sink.Append(ctx, Envelope{}), ErrMissingIdempotencyKey)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, sink.Append(canceled, other), context.Canceled)
}

func TestLogSinkAndFanOut(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	mem := NewMemorySink()
	failing := &failingSink{}
	fan := FanOut{failing, NewLogSink(logger, slog.LevelInfo), mem}

	env, err := NewEnvelope(TypeDuplicatesFound, "test", "dup:1", []string{"a", "b"})
	require.NoError(t, err)

	err = fan.Append(context.Background(), env)
	require.Error(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Len(t, mem.Events(), 1, "later sinks still receive the event")
	assert.Contains(t, buf.String(), "event_type="+TypeDuplicatesFound)
}

func TestUsageRecorder(t *testing.T) {
	sink := NewMemorySink()
	record := UsageRecorder(context.Background(), sink)

	m := domain.UsageMetrics{ID: "u-1", WorkspaceID: "ws-1", Provider: "openai", Model: "gpt-4o", TotalTokens: 42, Success: true}
	record(m)
	record(m)

	got := sink.OfType(TypeLLMUsage)
	require.Len(t, got, 1)
	assert.Equal(t, "ws-1", got[0].WorkspaceID)
	assert.Equal(t, UsageSource, got[0].Source)

	var decoded domain.UsageMetrics
	require.NoError(t, got[0].Decode(&decoded))
	assert.Equal(t, 42, decoded.TotalTokens)

	failing := &failingSink{}
	assert.NotPanics(t, func() { UsageRecorder(context.Background(), failing)(m) })
	assert.Equal(t, 1, failing.calls)
}
