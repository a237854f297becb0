package retry

import (
	"context"

	"github.com/ahrav/go-themis/internal/llm/transport"
)

// Middleware wraps a handler in the Retrier's policy. Each attempt reuses
// the same request, so the idempotency key is stable across retries.
func (r *Retrier) Middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			return Do(ctx, r, func(ctx context.Context, attempt int) (*transport.Response, error) {
				resp, err := next.Handle(ctx, req)
				if err != nil && attempt > 1 {
					r.logger.Debug("attempt failed",
						"attempt", attempt,
						"model", req.Model,
						"request_id", req.RequestID,
						"error", err)
				}
				return resp, err
			})
		})
	}
}
