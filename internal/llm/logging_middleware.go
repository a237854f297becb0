package llm

import (
	"context"
	"log/slog"
	"time"

	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
	"github.com/ahrav/go-themis/internal/llm/transport"
)

// newLoggingMiddleware logs each logical call once. Prompt content is
// never logged.
func newLoggingMiddleware(logger *slog.Logger) transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			logger.DebugContext(ctx, "llm request started",
				"request_id", req.RequestID,
				"operation", req.Operation,
				"model", req.Model,
				"workspace_id", req.WorkspaceID,
				"estimated_tokens", req.EstimatedTokens,
				"messages", len(req.Messages))

			start := time.Now()
			resp, err := next.Handle(ctx, req)
			duration := time.Since(start)

			if err != nil {
				classified := llmerrors.ClassifyLLMError(err)
				logger.WarnContext(ctx, "llm request failed",
					"request_id", req.RequestID,
					"operation", req.Operation,
					"workspace_id", req.WorkspaceID,
					"duration_ms", duration.Milliseconds(),
					"error_type", classified.Type,
					"retryable", classified.Retryable,
					"error", err)
				return resp, err
			}

			logger.InfoContext(ctx, "llm request completed",
				"request_id", req.RequestID,
				"operation", req.Operation,
				"model", resp.Model,
				"workspace_id", req.WorkspaceID,
				"duration_ms", duration.Milliseconds(),
				"tokens", resp.Usage.TotalTokens,
				"finish_reason", resp.FinishReason)
			return resp, nil
		})
	}
}
