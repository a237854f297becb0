package budget

import (
	"context"

	"github.com/ahrav/go-themis/internal/llm/transport"
)

// Middleware reserves req.EstimatedTokens before the call and settles the
// reservation with the provider-reported total afterwards. Failed calls
// release their reservation. When a provider reports no usage the
// estimate is kept.
func (g *Guard) Middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			estimate := int64(req.EstimatedTokens)
			res, err := g.Reserve(ctx, req.WorkspaceID, estimate)
			if err != nil {
				return nil, err
			}

			resp, err := next.Handle(ctx, req)
			if err != nil {
				if relErr := g.Release(context.WithoutCancel(ctx), res); relErr != nil {
					g.logger.Error("failed to release budget reservation", "reservation_id", res.ID, "error", relErr)
				}
				return resp, err
			}

			actual := int64(resp.Usage.TotalTokens)
			if actual <= 0 {
				actual = estimate
			}
			if setErr := g.Settle(context.WithoutCancel(ctx), res, actual); setErr != nil {
				g.logger.Error("failed to settle budget reservation",
					"reservation_id", res.ID,
					"workspace_id", req.WorkspaceID,
					"tokens", actual,
					"error", setErr)
			}
			return resp, nil
		})
	}
}
