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

// OpenAIProvider speaks OpenAI's chat/completions and embeddings APIs.
type OpenAIProvider struct {
	httpProvider
}

// NewOpenAIProvider creates an OpenAI provider. An empty BaseURL defaults to
// OpenAI's production API.
func NewOpenAIProvider(cfg configuration.LLMConfig, client *http.Client) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = configuration.DefaultOpenAIBaseURL
	}
	return &OpenAIProvider{httpProvider: newHTTPProvider(configuration.ProviderOpenAI, cfg, client)}
}

// Complete sends a chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	prm := p.applyDefaults(req)

	return p.do(ctx, req,
		func(ctx context.Context) (*http.Request, error) { return p.buildCompletion(ctx, req, prm) },
		p.parseCompletion)
}

// buildCompletion constructs the chat/completions request.
func (p *OpenAIProvider) buildCompletion(ctx context.Context, req *transport.Request, prm params) (*http.Request, error) {
	messages := make([]map[string]any, 0, len(prm.messages))
	for _, m := range prm.messages {
		messages = append(messages, map[string]any{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}

	body := map[string]any{
		"model":             prm.model,
		"messages":          messages,
		"temperature":       prm.temperature,
		"max_tokens":        prm.maxTokens,
		"top_p":             prm.topP,
		"frequency_penalty": prm.frequencyPenalty,
		"presence_penalty":  prm.presencePenalty,
	}
	if len(prm.stop) > 0 {
		body["stop"] = prm.stop
	}

	httpReq, err := p.newJSONRequest(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	return httpReq, nil
}

// parseCompletion extracts normalized data from a chat/completions response.
func (p *OpenAIProvider) parseCompletion(httpResp *http.Response, body []byte) (*transport.Response, error) {
	if httpResp.StatusCode != http.StatusOK {
		return nil, p.parseError(httpResp, body)
	}

	var resp struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", llmerrors.ErrInvalidResponse, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", llmerrors.ErrInvalidResponse)
	}

	requestIDs := []string{}
	if reqID := httpResp.Header.Get("x-request-id"); reqID != "" {
		requestIDs = append(requestIDs, reqID)
	}

	return &transport.Response{
		Content:            resp.Choices[0].Message.Content,
		FinishReason:       mapOpenAIFinishReason(resp.Choices[0].FinishReason),
		Model:              resp.Model,
		ProviderRequestIDs: requestIDs,
		Usage: domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Embed requests a vector from the embeddings endpoint.
func (p *OpenAIProvider) Embed(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if err := validateEmbedRequest(req); err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = p.cfg.EmbeddingModel
	}
	if model == "" && p.name == configuration.ProviderLocal {
		model = p.cfg.Model
	}
	if model == "" {
		model = configuration.DefaultOpenAIEmbeddingModel
	}

	return p.do(ctx, req,
		func(ctx context.Context) (*http.Request, error) {
			return p.newJSONRequest(ctx, "/embeddings", map[string]any{"model": model, "input": req.Input})
		},
		func(httpResp *http.Response, body []byte) (*transport.Response, error) {
			if httpResp.StatusCode != http.StatusOK {
				return nil, p.parseError(httpResp, body)
			}
			var resp struct {
				Model string `json:"model"`
				Data  []struct {
					Embedding []float64 `json:"embedding"`
				} `json:"data"`
				Usage struct {
					PromptTokens int `json:"prompt_tokens"`
					TotalTokens  int `json:"total_tokens"`
				} `json:"usage"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, fmt.Errorf("%w: %w", llmerrors.ErrInvalidResponse, err)
			}
			if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
				return nil, fmt.Errorf("%w: empty embedding", llmerrors.ErrInvalidResponse)
			}
			if resp.Model == "" {
				resp.Model = model
			}
			return &transport.Response{
				Embedding:    resp.Data[0].Embedding,
				Model:        resp.Model,
				FinishReason: domain.FinishStop,
				Usage: domain.TokenUsage{
					PromptTokens: resp.Usage.PromptTokens,
					TotalTokens:  resp.Usage.TotalTokens,
				},
			}, nil
		})
}

// HealthCheck lists models to confirm the endpoint and key work.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) bool {
	return p.ping(ctx, func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/models", nil)
		if err != nil {
			return nil, err
		}
		p.authorize(httpReq)
		return httpReq, nil
	})
}

func (p *OpenAIProvider) newJSONRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.setHeaders(httpReq)
	p.authorize(httpReq)
	return httpReq, nil
}

// authorize sets the bearer token. Local OpenAI-compatible servers may run
// without a key, in which case no header is sent.
func (p *OpenAIProvider) authorize(httpReq *http.Request) {
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
}

// parseError converts OpenAI error responses to ProviderError.
func (p *OpenAIProvider) parseError(httpResp *http.Response, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		code := errResp.Error.Code
		if code == "" {
			code = errResp.Error.Type
		}
		return &llmerrors.ProviderError{
			Provider:   p.name,
			StatusCode: httpResp.StatusCode,
			Message:    errResp.Error.Message,
			Code:       code,
			Type:       classifyErrorType(httpResp.StatusCode, code),
			RetryAfter: retryAfterSeconds(httpResp.Header),
		}
	}

	return newStatusError(p.name, httpResp, body)
}

// mapOpenAIFinishReason converts OpenAI finish_reason to domain FinishReason.
func mapOpenAIFinishReason(reason string) domain.FinishReason {
	switch reason {
	case "stop":
		return domain.FinishStop
	case "length":
		return domain.FinishLength
	case "content_filter":
		return domain.FinishContentFilter
	default:
		return domain.FinishError
	}
}
