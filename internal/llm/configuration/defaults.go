package configuration

import (
	"time"

	"github.com/ahrav/go-themis/internal/domain"
)

// Request defaults.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1500
	DefaultTopP        = 1.0
	DefaultTimeout     = 30 * time.Second
)

// Provider endpoints and models.
const (
	DefaultOpenAIBaseURL        = "https://api.openai.com/v1"
	DefaultAnthropicBaseURL     = "https://api.anthropic.com/v1"
	DefaultOllamaBaseURL        = "http://localhost:11434"
	DefaultLocalBaseURL         = "http://localhost:8080/v1"
	DefaultOpenAIModel          = "gpt-4-turbo-preview"
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	DefaultAnthropicVersion     = "2023-06-01"
)

// Retry constants.
const (
	DefaultMaxAttempts       = 3
	DefaultInitialInterval   = time.Second
	DefaultMaxInterval       = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Rate limiting constants.
const (
	DefaultRequestsPerMinute = 60
	DefaultTokensPerMinute   = 90000
	DefaultPollInterval      = 100 * time.Millisecond
)

// Budget constants.
const (
	DefaultGlobalDailyTokens      = 1_000_000
	DefaultWorkspaceDailyTokens   = 100_000
	DefaultWorkspaceMonthlyTokens = 2_000_000
)

// Embedding constants.
const (
	DefaultEmbeddingCacheSize   = 1024
	DefaultSimilarityThreshold  = 0.8
	DefaultDuplicateThreshold   = 0.85
	DefaultEmbeddingConcurrency = 4
)

// Temporal constants.
const (
	DefaultTemporalHostPort = "localhost:7233"
	DefaultNamespace        = "default"
	DefaultTaskQueue        = "themis"
)

// DefaultConfig returns configuration with production defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       DefaultOpenAIModel,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
			TopP:        DefaultTopP,
			Timeout:     DefaultTimeout,
		},
		Retry: RetryConfig{
			MaxAttempts:     DefaultMaxAttempts,
			InitialInterval: DefaultInitialInterval,
			MaxInterval:     DefaultMaxInterval,
			Multiplier:      DefaultBackoffMultiplier,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: DefaultRequestsPerMinute,
			TokensPerMinute:   DefaultTokensPerMinute,
			PollInterval:      DefaultPollInterval,
		},
		Budget: BudgetConfig{
			Enabled: true,
			Backend: BudgetBackendMemory,
			Limits: domain.BudgetLimits{
				GlobalDailyTokens:      DefaultGlobalDailyTokens,
				WorkspaceDailyTokens:   DefaultWorkspaceDailyTokens,
				WorkspaceMonthlyTokens: DefaultWorkspaceMonthlyTokens,
			},
		},
		Embedding: EmbeddingConfig{
			CacheSize:           DefaultEmbeddingCacheSize,
			SimilarityThreshold: DefaultSimilarityThreshold,
			DuplicateThreshold:  DefaultDuplicateThreshold,
			BatchConcurrency:    DefaultEmbeddingConcurrency,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "themis:budget",
		},
		Temporal: TemporalConfig{
			HostPort:  DefaultTemporalHostPort,
			Namespace: DefaultNamespace,
			TaskQueue: DefaultTaskQueue,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultBaseURL returns the endpoint used when LLMConfig.BaseURL is empty.
func DefaultBaseURL(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return DefaultOpenAIBaseURL
	case ProviderAnthropic:
		return DefaultAnthropicBaseURL
	case ProviderOllama:
		return DefaultOllamaBaseURL
	case ProviderLocal:
		return DefaultLocalBaseURL
	default:
		return ""
	}
}
