// Package activity provides shared plumbing for Temporal activity
// implementations: workflow metadata extraction, best-effort event emission
// and logging that degrades to a no-op outside an activity context.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/ahrav/go-themis/pkg/events"
)

// WorkflowContext is the execution metadata an activity runs under.
type WorkflowContext struct {
	WorkflowID string
	RunID      string
	ActivityID string
	Attempt    int32
}

// BaseActivities is embedded by every activity struct.
type BaseActivities struct {
	eventSink events.EventSink
}

// NewBaseActivities creates a BaseActivities emitting to sink. A nil sink
// disables emission.
func NewBaseActivities(sink events.EventSink) BaseActivities {
	return BaseActivities{eventSink: sink}
}

// GetWorkflowContext extracts execution metadata from ctx. Outside an
// activity (unit tests calling methods directly) it returns stable
// placeholder IDs so idempotency keys stay deterministic.
func (b *BaseActivities) GetWorkflowContext(ctx context.Context) WorkflowContext {
	wfCtx := WorkflowContext{
		WorkflowID: "local",
		RunID:      "local",
		ActivityID: "local",
		Attempt:    1,
	}

	func() {
		defer func() { _ = recover() }()
		info := activity.GetInfo(ctx)
		wfCtx = WorkflowContext{
			WorkflowID: info.WorkflowExecution.ID,
			RunID:      info.WorkflowExecution.RunID,
			ActivityID: info.ActivityID,
			Attempt:    info.Attempt,
		}
	}()

	return wfCtx
}

// IdempotencyKey derives a key that is stable across retries of the same
// activity in the same run.
func (w WorkflowContext) IdempotencyKey(parts ...string) string {
	ns := uuid.NewSHA1(uuid.NameSpaceOID, []byte(w.WorkflowID+"/"+w.RunID+"/"+w.ActivityID))
	name := ""
	for _, p := range parts {
		name += "/" + p
	}
	return uuid.NewSHA1(ns, []byte(name)).String()
}

// Emit builds an envelope for payload and emits it best-effort. The
// idempotency key is derived from the workflow context and keyParts.
func (b *BaseActivities) Emit(ctx context.Context, eventType, source, workspaceID string, payload any, keyParts ...string) {
	if b.eventSink == nil {
		return
	}
	wfCtx := b.GetWorkflowContext(ctx)
	env, err := events.NewEnvelope(eventType, source, wfCtx.IdempotencyKey(append([]string{eventType}, keyParts...)...), payload)
	if err != nil {
		SafeLogError(ctx, "Failed to build event", "event_type", eventType, "error", err)
		return
	}
	env.WorkspaceID = workspaceID
	env.WorkflowID = wfCtx.WorkflowID
	env.RunID = wfCtx.RunID
	b.EmitEventSafe(ctx, env, eventType)
}

// EmitEventSafe appends envelope to the sink, retrying once after a short
// delay. Failures are logged, never returned.
func (b *BaseActivities) EmitEventSafe(ctx context.Context, envelope events.Envelope, description string) {
	if b.eventSink == nil {
		return
	}

	const maxAttempts = 2
	const retryDelay = 200 * time.Millisecond

	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				SafeLogError(ctx, "Event emission cancelled: "+description, "event_type", envelope.Type)
				return
			}
		}

		if lastErr = b.eventSink.Append(ctx, envelope); lastErr == nil {
			SafeLog(ctx, "Event emitted: "+description,
				"event_type", envelope.Type,
				"idempotency_key", envelope.IdempotencyKey)
			return
		}
	}

	SafeLogError(ctx, fmt.Sprintf("Failed to emit %s after %d attempts", description, maxAttempts),
		"event_type", envelope.Type,
		"error", lastErr)
}

// RecordHeartbeat records a heartbeat when ctx is an activity context.
func (b *BaseActivities) RecordHeartbeat(ctx context.Context, details ...any) {
	RecordHeartbeat(ctx, details...)
}

// SafeLog logs at Info through the activity logger; outside an activity it
// does nothing.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	defer func() { _ = recover() }()
	activity.GetLogger(ctx).Info(msg, keyvals...)
}

// SafeLogError logs at Error through the activity logger; outside an
// activity it does nothing.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	defer func() { _ = recover() }()
	activity.GetLogger(ctx).Error(msg, keyvals...)
}

// RecordHeartbeat records activity progress; outside an activity it does nothing.
func RecordHeartbeat(ctx context.Context, details ...any) {
	defer func() { _ = recover() }()
	activity.RecordHeartbeat(ctx, details...)
}
