// Package providers implements the vendor adapters behind a single Provider
// contract. Adapters translate the generic request into a vendor wire format,
// map finish reasons onto the shared enum, and never retry: the retry policy
// lives in one place above them.
package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
	"github.com/ahrav/go-themis/internal/llm/transport"
)

// Provider is the capability set every vendor adapter offers.
type Provider interface {
	// Complete sends a chat completion.
	Complete(ctx context.Context, req *transport.Request) (*transport.Response, error)

	// Embed returns a vector for req.Input. Providers without embeddings
	// return an UnsupportedCapabilityError rather than an empty vector.
	Embed(ctx context.Context, req *transport.Request) (*transport.Response, error)

	// HealthCheck reports whether the provider is reachable and authorised.
	HealthCheck(ctx context.Context) bool

	// Name returns the canonical provider identifier.
	Name() string
}

// Kind is the closed set of provider identifiers.
type Kind string

// Supported provider kinds.
const (
	KindOpenAI    Kind = configuration.ProviderOpenAI
	KindAnthropic Kind = configuration.ProviderAnthropic
	KindOllama    Kind = configuration.ProviderOllama
	KindLocal     Kind = configuration.ProviderLocal
)

// New builds the provider selected by cfg.Provider.
// Unknown kinds fail here so a misconfigured service never starts.
func New(cfg configuration.LLMConfig, client *http.Client) (Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = configuration.DefaultBaseURL(cfg.Provider)
	}
	if client == nil {
		client = &http.Client{}
	}

	switch Kind(cfg.Provider) {
	case KindOpenAI:
		return NewOpenAIProvider(cfg, client), nil
	case KindAnthropic:
		return NewAnthropicProvider(cfg, client), nil
	case KindOllama:
		return NewOllamaProvider(cfg, client), nil
	case KindLocal:
		return NewLocalProvider(cfg, client), nil
	default:
		return nil, fmt.Errorf("%w: %q", llmerrors.ErrUnknownProvider, cfg.Provider)
	}
}

// params are the request parameters after config defaults are applied.
type params struct {
	model            string
	messages         []domain.Message
	temperature      float64
	maxTokens        int
	topP             float64
	frequencyPenalty float64
	presencePenalty  float64
	stop             []string
}

// validateRequest rejects malformed completion requests before any I/O.
func validateRequest(req *transport.Request) error {
	if len(req.Messages) == 0 {
		return &llmerrors.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return &llmerrors.ValidationError{Field: "temperature", Value: *req.Temperature, Message: "must be between 0 and 2"}
	}
	if req.MaxTokens < 0 {
		return &llmerrors.ValidationError{Field: "max_tokens", Value: req.MaxTokens, Message: "must be positive"}
	}
	if req.TopP != nil && (*req.TopP < 0 || *req.TopP > 1) {
		return &llmerrors.ValidationError{Field: "top_p", Value: *req.TopP, Message: "must be between 0 and 1"}
	}
	for i, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem, domain.RoleUser, domain.RoleAssistant:
		default:
			return &llmerrors.ValidationError{Field: fmt.Sprintf("messages[%d].role", i), Value: m.Role, Message: "unknown role"}
		}
	}
	return nil
}

// validateEmbedRequest rejects empty embedding input.
func validateEmbedRequest(req *transport.Request) error {
	if req.Input == "" {
		return &llmerrors.ValidationError{Field: "input", Message: "text to embed is required"}
	}
	return nil
}

// httpProvider holds what every HTTP-backed adapter shares.
type httpProvider struct {
	name   string
	cfg    configuration.LLMConfig
	client *http.Client
	logger *slog.Logger
}

func newHTTPProvider(name string, cfg configuration.LLMConfig, client *http.Client) httpProvider {
	return httpProvider{
		name:   name,
		cfg:    cfg,
		client: client,
		logger: slog.Default().With("component", "provider", "provider", name),
	}
}

// Name returns the provider name.
func (p *httpProvider) Name() string { return p.name }

// applyDefaults fills unset parameters from the provider config.
func (p *httpProvider) applyDefaults(req *transport.Request) params {
	out := params{
		model:            p.cfg.Model,
		messages:         req.Messages,
		temperature:      p.cfg.Temperature,
		maxTokens:        p.cfg.MaxTokens,
		topP:             p.cfg.TopP,
		frequencyPenalty: req.FrequencyPenalty,
		presencePenalty:  req.PresencePenalty,
		stop:             req.Stop,
	}
	if req.Model != "" {
		out.model = req.Model
	}
	if req.Temperature != nil {
		out.temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		out.maxTokens = req.MaxTokens
	}
	if req.TopP != nil {
		out.topP = *req.TopP
	}
	if out.maxTokens <= 0 {
		out.maxTokens = configuration.DefaultMaxTokens
	}
	if out.topP == 0 {
		out.topP = configuration.DefaultTopP
	}
	return out
}

// timeout returns the per-request timeout, falling back to the config.
func (p *httpProvider) timeout(req *transport.Request) time.Duration {
	if req != nil && req.Timeout > 0 {
		return req.Timeout
	}
	return p.cfg.Timeout
}

// setHeaders applies the configured extra headers.
func (p *httpProvider) setHeaders(httpReq *http.Request) {
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range p.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
}

// do executes build → send → parse under the per-request timeout.
func (p *httpProvider) do(
	ctx context.Context,
	req *transport.Request,
	build func(context.Context) (*http.Request, error),
	parse func(*http.Response, []byte) (*transport.Response, error),
) (*transport.Response, error) {
	if d := p.timeout(req); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	httpReq, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	httpResp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return nil, wrapTransportError(p.name, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, wrapTransportError(p.name, err)
	}

	resp, err := parse(httpResp, body)
	if err != nil {
		return nil, err
	}

	resp.Provider = p.name
	resp.Latency = latency
	resp.Headers = httpResp.Header
	p.logger.Debug("provider call completed",
		"model", resp.Model,
		"duration_ms", latency.Milliseconds(),
		"tokens", resp.Usage.TotalTokens)
	return resp, nil
}

// ping issues a GET and reports whether it returned 2xx.
func (p *httpProvider) ping(ctx context.Context, build func(context.Context) (*http.Request, error)) bool {
	if d := p.timeout(nil); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	httpReq, err := build(ctx)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Debug("health check failed", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
