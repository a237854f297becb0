package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
	"github.com/ahrav/go-themis/internal/llm/transport"
)

// AnthropicProvider speaks Anthropic's messages API. It has no embeddings.
type AnthropicProvider struct {
	httpProvider
}

// NewAnthropicProvider creates an Anthropic provider with the default endpoint
// when none is configured.
func NewAnthropicProvider(cfg configuration.LLMConfig, client *http.Client) *AnthropicProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = configuration.DefaultAnthropicBaseURL
	}
	return &AnthropicProvider{httpProvider: newHTTPProvider(configuration.ProviderAnthropic, cfg, client)}
}

// Complete sends a messages request. System messages are lifted into the
// top-level system field as Anthropic requires.
func (p *AnthropicProvider) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	prm := p.applyDefaults(req)

	return p.do(ctx, req,
		func(ctx context.Context) (*http.Request, error) { return p.build(ctx, req, prm) },
		p.parse)
}

func (p *AnthropicProvider) build(ctx context.Context, req *transport.Request, prm params) (*http.Request, error) {
	var system []string
	messages := make([]map[string]any, 0, len(prm.messages))
	for _, m := range prm.messages {
		if m.Role == domain.RoleSystem {
			if m.Content != "" {
				system = append(system, m.Content)
			}
			continue
		}
		messages = append(messages, map[string]any{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}
	if len(messages) == 0 {
		return nil, &llmerrors.ValidationError{Field: "messages", Message: "at least one non-system message is required"}
	}

	body := map[string]any{
		"model":       prm.model,
		"messages":    messages,
		"max_tokens":  prm.maxTokens,
		"temperature": prm.temperature,
		"top_p":       prm.topP,
	}
	if len(system) > 0 {
		body["system"] = strings.Join(system, "\n\n")
	}
	if len(prm.stop) > 0 {
		body["stop_sequences"] = prm.stop
	}

	httpReq, err := p.newJSONRequest(ctx, http.MethodPost, "/messages", body)
	if err != nil {
		return nil, err
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	return httpReq, nil
}

func (p *AnthropicProvider) parse(httpResp *http.Response, body []byte) (*transport.Response, error) {
	if httpResp.StatusCode != http.StatusOK {
		return nil, p.parseError(httpResp, body)
	}

	var resp struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", llmerrors.ErrInvalidResponse, err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	requestIDs := []string{}
	if reqID := httpResp.Header.Get("request-id"); reqID != "" {
		requestIDs = append(requestIDs, reqID)
	}

	return &transport.Response{
		Content:            content.String(),
		FinishReason:       mapAnthropicStopReason(resp.StopReason),
		Model:              resp.Model,
		ProviderRequestIDs: requestIDs,
		Usage: domain.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// Embed is not offered by Anthropic.
func (p *AnthropicProvider) Embed(context.Context, *transport.Request) (*transport.Response, error) {
	return nil, &llmerrors.UnsupportedCapabilityError{Provider: p.name, Capability: "embeddings"}
}

// HealthCheck sends a one-token completion.
func (p *AnthropicProvider) HealthCheck(ctx context.Context) bool {
	_, err := p.Complete(ctx, &transport.Request{
		Operation: transport.OpCompletion,
		Messages:  []domain.Message{domain.UserMessage("ping")},
		MaxTokens: 1,
	})
	if err != nil {
		p.logger.Debug("health check failed", "error", err)
	}
	return err == nil
}

func (p *AnthropicProvider) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.setHeaders(httpReq)
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", configuration.DefaultAnthropicVersion)
	return httpReq, nil
}

// parseError converts Anthropic error envelopes to ProviderError.
func (p *AnthropicProvider) parseError(httpResp *http.Response, body []byte) error {
	var errResp struct {
		Type  string `json:"type"`
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &llmerrors.ProviderError{
			Provider:   p.name,
			StatusCode: httpResp.StatusCode,
			Message:    errResp.Error.Message,
			Code:       errResp.Error.Type,
			Type:       classifyErrorType(httpResp.StatusCode, errResp.Error.Type),
			RetryAfter: retryAfterSeconds(httpResp.Header),
		}
	}

	return newStatusError(p.name, httpResp, body)
}

// mapAnthropicStopReason converts Anthropic stop_reason to domain FinishReason.
func mapAnthropicStopReason(reason string) domain.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return domain.FinishStop
	case "max_tokens":
		return domain.FinishLength
	default:
		return domain.FinishError
	}
}
