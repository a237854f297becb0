// Package llm is the single entry point for LLM calls. Service resolves a
// provider from configuration and sends every call through one middleware
// chain: logging, budget, retry, rate limiting, then the provider itself.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/llm/budget"
	"github.com/ahrav/go-themis/internal/llm/configuration"
	"github.com/ahrav/go-themis/internal/llm/providers"
	"github.com/ahrav/go-themis/internal/llm/ratelimit"
	"github.com/ahrav/go-themis/internal/llm/retry"
	"github.com/ahrav/go-themis/internal/llm/tokens"
	"github.com/ahrav/go-themis/internal/llm/transport"
)

// Service dispatches completion and embedding requests to the configured
// provider. It is safe for concurrent use.
type Service struct {
	cfg      configuration.LLMConfig
	provider providers.Provider
	handler  transport.Handler

	retrier *retry.Retrier
	limiter *ratelimit.Limiter
	guard   *budget.Guard

	onUsage domain.UsageRecorder
	now     func() time.Time
	logger  *slog.Logger

	// closers release resources the service created itself.
	closers []func() error
}

type serviceOptions struct {
	provider   providers.Provider
	httpClient *http.Client
	retrier    *retry.Retrier
	limiter    *ratelimit.Limiter
	guard      *budget.Guard
	onUsage    domain.UsageRecorder
	now        func() time.Time
	mode       ratelimit.Mode
}

// Option configures a Service.
type Option func(*serviceOptions)

// WithProvider bypasses provider construction from configuration.
func WithProvider(p providers.Provider) Option {
	return func(o *serviceOptions) { o.provider = p }
}

// WithHTTPClient sets the client used by HTTP providers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *serviceOptions) { o.httpClient = c }
}

// WithRetrier replaces the retrier built from configuration.
func WithRetrier(r *retry.Retrier) Option {
	return func(o *serviceOptions) { o.retrier = r }
}

// WithRateLimiter installs a limiter regardless of RateLimit.Enabled.
func WithRateLimiter(l *ratelimit.Limiter, mode ratelimit.Mode) Option {
	return func(o *serviceOptions) {
		o.limiter = l
		o.mode = mode
	}
}

// WithBudgetGuard installs a guard regardless of Budget.Enabled.
func WithBudgetGuard(g *budget.Guard) Option {
	return func(o *serviceOptions) { o.guard = g }
}

// WithUsageRecorder registers the callback receiving one UsageMetrics per
// completion call.
func WithUsageRecorder(fn domain.UsageRecorder) Option {
	return func(o *serviceOptions) { o.onUsage = fn }
}

// WithClock injects the time source for usage timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// NewService builds a Service from cfg. An unknown provider fails here.
func NewService(cfg *configuration.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}

	o := serviceOptions{now: time.Now, mode: ratelimit.ModeWait}
	for _, opt := range opts {
		opt(&o)
	}

	provider := o.provider
	if provider == nil {
		httpClient := o.httpClient
		if httpClient == nil {
			httpClient = cfg.HTTPClient
		}
		p, err := providers.New(cfg.LLM, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize provider: %w", err)
		}
		provider = p
	}

	retrier := o.retrier
	if retrier == nil {
		r, err := retry.New(cfg.Retry)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize retry: %w", err)
		}
		retrier = r
	}

	limiter := o.limiter
	if limiter == nil && cfg.RateLimit.Enabled {
		l, err := ratelimit.New(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
		limiter = l
	}

	var closers []func() error
	guard := o.guard
	if guard == nil && cfg.Budget.Enabled {
		var guardOpts []budget.Option
		if cfg.Budget.Backend == configuration.BudgetBackendRedis {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			closers = append(closers, client.Close)
			guardOpts = append(guardOpts, budget.WithLedger(budget.NewRedisLedger(client, cfg.Redis.KeyPrefix)))
		}
		g, err := budget.NewGuard(cfg.Budget.Limits, guardOpts...)
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("failed to initialize budget guard: %w", err)
		}
		guard = g
	}

	s := &Service{
		cfg:      cfg.LLM,
		provider: provider,
		retrier:  retrier,
		limiter:  limiter,
		guard:    guard,
		onUsage:  o.onUsage,
		now:      o.now,
		logger:   slog.Default().With("component", "llm", "provider", provider.Name()),
		closers:  closers,
	}

	// Budget wraps retry so one logical call reserves once; the limiter sits
	// inside retry so every attempt pays for its own request.
	middlewares := []transport.Middleware{newLoggingMiddleware(s.logger)}
	if guard != nil {
		middlewares = append(middlewares, guard.Middleware())
	}
	middlewares = append(middlewares, retrier.Middleware())
	if limiter != nil {
		middlewares = append(middlewares, limiter.Middleware(o.mode))
	}
	s.handler = transport.Chain(transport.HandlerFunc(s.dispatch), middlewares...)

	return s, nil
}

// dispatch is the innermost handler.
func (s *Service) dispatch(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if req.Operation == transport.OpEmbedding {
		return s.provider.Embed(ctx, req)
	}
	return s.provider.Complete(ctx, req)
}

// Complete sends a chat completion through the full chain and reports
// usage on success and on failure. A failure after exhausted retries keeps
// the last provider error, and with it its retryable classification.
func (s *Service) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	req.Operation = transport.OpCompletion
	if err := s.prepare(ctx, req); err != nil {
		return nil, err
	}

	start := s.now()
	resp, err := s.handler.Handle(ctx, req)
	s.recordUsage(req, resp, start, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Embed requests a vector for req.Input through the same chain. Usage is
// not reported separately.
func (s *Service) Embed(ctx context.Context, req *transport.Request) (domain.Embedding, error) {
	req.Operation = transport.OpEmbedding
	if err := s.prepare(ctx, req); err != nil {
		return domain.Embedding{}, err
	}

	resp, err := s.handler.Handle(ctx, req)
	if err != nil {
		return domain.Embedding{}, err
	}
	return domain.NewEmbedding(resp.Embedding, resp.Model), nil
}

// HealthCheck reports whether the provider answers.
func (s *Service) HealthCheck(ctx context.Context) bool {
	return s.provider.HealthCheck(ctx)
}

// ProviderName returns the active provider's name.
func (s *Service) ProviderName() string { return s.provider.Name() }

// Budget returns the active guard, or nil when budgets are disabled.
func (s *Service) Budget() *budget.Guard { return s.guard }

// Close releases connections opened by NewService.
func (s *Service) Close() error { return closeAll(s.closers) }

func closeAll(closers []func() error) error {
	var errs []error
	for _, c := range closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RetryStats returns the shared retrier's counters.
func (s *Service) RetryStats() retry.Stats { return s.retrier.Stats() }

// prepare fills request IDs, workspace attribution and token estimates.
func (s *Service) prepare(ctx context.Context, req *transport.Request) error {
	if req.WorkspaceID == "" {
		req.WorkspaceID = WorkspaceFrom(ctx)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.EstimatedTokens <= 0 {
		req.EstimatedTokens = s.estimate(req)
	}
	if req.IdempotencyKey == "" {
		key, err := transport.GenerateIdemKey(req)
		if err != nil {
			return fmt.Errorf("failed to generate idempotency key: %w", err)
		}
		req.IdempotencyKey = key.String()
	}
	return nil
}

// estimate sizes a request as prompt tokens plus the completion ceiling,
// bounded by what the model can produce.
func (s *Service) estimate(req *transport.Request) int {
	if req.Operation == transport.OpEmbedding {
		return tokens.Estimate(req.Input)
	}

	prompt := tokens.EstimateMessages(req.Messages)
	model := req.Model
	if model == "" {
		model = s.cfg.Model
	}
	completion := req.MaxTokens
	if completion <= 0 {
		completion = s.cfg.MaxTokens
	}
	if completion <= 0 {
		completion = configuration.DefaultMaxTokens
	}
	completion = min(completion, tokens.MaxCompletion(prompt, tokens.ModelLimit(model), tokens.DefaultSafetyBuffer))
	return prompt + max(completion, 0)
}

func (s *Service) recordUsage(req *transport.Request, resp *transport.Response, start time.Time, err error) {
	if s.onUsage == nil {
		return
	}

	m := domain.UsageMetrics{
		ID:          uuid.NewString(),
		Timestamp:   start,
		WorkspaceID: req.WorkspaceID,
		Provider:    s.provider.Name(),
		Model:       req.Model,
		Duration:    s.now().Sub(start),
		Success:     err == nil,
	}
	if m.Model == "" {
		m.Model = s.cfg.Model
	}
	if resp != nil {
		if resp.Model != "" {
			m.Model = resp.Model
		}
		m.PromptTokens = resp.Usage.PromptTokens
		m.CompletionTokens = resp.Usage.CompletionTokens
		m.TotalTokens = resp.Usage.TotalTokens
	}
	if err != nil {
		m.Error = err.Error()
	}
	s.onUsage(m)
}
