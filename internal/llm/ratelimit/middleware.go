package ratelimit

import (
	"context"

	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
	"github.com/ahrav/go-themis/internal/llm/transport"
)

// Mode selects how the middleware reacts to an empty bucket.
type Mode int

const (
	// ModeWait blocks until capacity is available or ctx is done.
	ModeWait Mode = iota
	// ModeReject fails fast with a RateLimitError carrying a retry hint.
	ModeReject
)

// Middleware throttles requests by their EstimatedTokens.
func (l *Limiter) Middleware(mode Mode) transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			tokens := req.EstimatedTokens

			switch mode {
			case ModeReject:
				if !l.CheckRequest(tokens) {
					c := l.Capacity()
					return nil, &llmerrors.RateLimitError{
						Provider:   "local",
						RetryAfter: l.retryAfter(tokens),
						Limit:      l.tokenCap,
						Remaining:  int(c.Tokens),
						LocalLimit: true,
					}
				}
			default:
				if err := l.WaitForCapacity(ctx, tokens); err != nil {
					return nil, err
				}
			}

			return next.Handle(ctx, req)
		})
	}
}
