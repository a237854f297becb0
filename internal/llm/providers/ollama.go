package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
	"github.com/ahrav/go-themis/internal/llm/transport"
)

// OllamaProvider talks to a local Ollama daemon.
type OllamaProvider struct {
	httpProvider
}

// NewOllamaProvider creates an Ollama provider, defaulting to localhost:11434.
func NewOllamaProvider(cfg configuration.LLMConfig, client *http.Client) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = configuration.DefaultOllamaBaseURL
	}
	return &OllamaProvider{httpProvider: newHTTPProvider(configuration.ProviderOllama, cfg, client)}
}

// Complete sends a non-streaming /api/chat request.
func (p *OllamaProvider) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	prm := p.applyDefaults(req)

	messages := make([]map[string]any, 0, len(prm.messages))
	for _, m := range prm.messages {
		messages = append(messages, map[string]any{"role": string(m.Role), "content": m.Content})
	}
	options := map[string]any{
		"temperature": prm.temperature,
		"num_predict": prm.maxTokens,
		"top_p":       prm.topP,
	}
	if len(prm.stop) > 0 {
		options["stop"] = prm.stop
	}
	body := map[string]any{
		"model":    prm.model,
		"messages": messages,
		"stream":   false,
		"options":  options,
	}

	return p.do(ctx, req,
		func(ctx context.Context) (*http.Request, error) { return p.newJSONRequest(ctx, "/api/chat", body) },
		func(httpResp *http.Response, raw []byte) (*transport.Response, error) {
			if httpResp.StatusCode != http.StatusOK {
				return nil, p.parseError(httpResp, raw)
			}
			var resp struct {
				Model   string `json:"model"`
				Message struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"message"`
				Done            bool   `json:"done"`
				DoneReason      string `json:"done_reason"`
				PromptEvalCount int    `json:"prompt_eval_count"`
				EvalCount       int    `json:"eval_count"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				return nil, fmt.Errorf("%w: %w", llmerrors.ErrInvalidResponse, err)
			}
			return &transport.Response{
				Content:      resp.Message.Content,
				FinishReason: mapOllamaDone(resp.Done, resp.DoneReason),
				Model:        resp.Model,
				Usage: domain.TokenUsage{
					PromptTokens:     resp.PromptEvalCount,
					CompletionTokens: resp.EvalCount,
					TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
				},
			}, nil
		})
}

// Embed calls /api/embeddings. The configured chat model is used when no
// embedding model is set.
func (p *OllamaProvider) Embed(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if err := validateEmbedRequest(req); err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = p.cfg.EmbeddingModel
	}
	if model == "" {
		model = p.cfg.Model
	}

	body := map[string]any{"model": model, "prompt": req.Input}
	return p.do(ctx, req,
		func(ctx context.Context) (*http.Request, error) { return p.newJSONRequest(ctx, "/api/embeddings", body) },
		func(httpResp *http.Response, raw []byte) (*transport.Response, error) {
			if httpResp.StatusCode != http.StatusOK {
				return nil, p.parseError(httpResp, raw)
			}
			var resp struct {
				Embedding []float64 `json:"embedding"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				return nil, fmt.Errorf("%w: %w", llmerrors.ErrInvalidResponse, err)
			}
			if len(resp.Embedding) == 0 {
				return nil, fmt.Errorf("%w: empty embedding", llmerrors.ErrInvalidResponse)
			}
			return &transport.Response{
				Embedding:    resp.Embedding,
				Model:        model,
				FinishReason: domain.FinishStop,
			}, nil
		})
}

// HealthCheck lists local models via /api/tags.
func (p *OllamaProvider) HealthCheck(ctx context.Context) bool {
	return p.ping(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/api/tags", nil)
	})
}

func (p *OllamaProvider) newJSONRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.setHeaders(httpReq)
	return httpReq, nil
}

// parseError reads Ollama's {"error": "..."} envelope.
func (p *OllamaProvider) parseError(httpResp *http.Response, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &llmerrors.ProviderError{
			Provider:   p.name,
			StatusCode: httpResp.StatusCode,
			Message:    errResp.Error,
			Type:       classifyErrorType(httpResp.StatusCode, ""),
		}
	}
	return newStatusError(p.name, httpResp, body)
}

// mapOllamaDone maps Ollama's done flag onto the shared enum.
func mapOllamaDone(done bool, reason string) domain.FinishReason {
	if !done {
		return domain.FinishError
	}
	if reason == "length" {
		return domain.FinishLength
	}
	return domain.FinishStop
}
