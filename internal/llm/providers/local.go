package providers

import (
	"net/http"

	"github.com/ahrav/go-themis/internal/llm/configuration"
)

// LocalProvider targets OpenAI-compatible servers such as llama.cpp, vLLM,
// or LM Studio. The API key is optional.
type LocalProvider struct {
	OpenAIProvider
}

// NewLocalProvider creates a provider for an OpenAI-compatible local server.
func NewLocalProvider(cfg configuration.LLMConfig, client *http.Client) *LocalProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = configuration.DefaultLocalBaseURL
	}
	return &LocalProvider{
		OpenAIProvider: OpenAIProvider{httpProvider: newHTTPProvider(configuration.ProviderLocal, cfg, client)},
	}
}
