package configuration

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-themis/internal/domain"
)

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Provider kinds. The set is closed; anything else fails at construction.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderLocal     = "local"
)

// Config holds the complete configuration for the themis core.
type Config struct {
	// HTTPClient overrides the client used for provider calls.
	HTTPClient *http.Client `json:"-" yaml:"-"`

	LLM       LLMConfig       `json:"llm" yaml:"llm" validate:"required"`
	Retry     RetryConfig     `json:"retry" yaml:"retry" validate:"required"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Budget    BudgetConfig    `json:"budget" yaml:"budget"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Temporal  TemporalConfig  `json:"temporal" yaml:"temporal"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`

	// PromptsDir optionally points at a directory of YAML prompt templates
	// loaded on top of the built-in defaults.
	PromptsDir string `json:"prompts_dir,omitempty" yaml:"prompts_dir,omitempty"`
}

// Validate checks if the configuration meets all requirements.
func (c *Config) Validate() error { return validate.Struct(c) }

// LLMConfig selects one provider and its request defaults.
// It is treated as immutable once a provider has been built from it.
type LLMConfig struct {
	Provider       string            `json:"provider" yaml:"provider" validate:"required,oneof=openai anthropic ollama local"`
	Model          string            `json:"model" yaml:"model" validate:"required"`
	APIKey         string            `json:"-" yaml:"-"` // Sensitive, not serialized
	BaseURL        string            `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	EmbeddingModel string            `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty"`
	Temperature    float64           `json:"temperature" yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens      int               `json:"max_tokens" yaml:"max_tokens" validate:"min=1"`
	TopP           float64           `json:"top_p" yaml:"top_p" validate:"min=0,max=1"`
	Timeout        time.Duration     `json:"timeout" yaml:"timeout" validate:"min=0"`
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// RequiresAPIKey reports whether the provider refuses to run without a key.
func (c LLMConfig) RequiresAPIKey() bool {
	return c.Provider == ProviderOpenAI || c.Provider == ProviderAnthropic
}

// RetryConfig controls the shared retry policy.
// Delay before attempt n+1 is InitialInterval × Multiplier^(n-1), capped at MaxInterval.
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts" yaml:"max_attempts" validate:"min=1"`
	InitialInterval time.Duration `json:"initial_interval" yaml:"initial_interval" validate:"min=0"`
	MaxInterval     time.Duration `json:"max_interval" yaml:"max_interval" validate:"min=0"`
	Multiplier      float64       `json:"multiplier" yaml:"multiplier" validate:"min=1"`
	UseJitter       bool          `json:"use_jitter" yaml:"use_jitter"`
}

// RateLimitConfig sizes the two token buckets.
type RateLimitConfig struct {
	Enabled           bool          `json:"enabled" yaml:"enabled"`
	RequestsPerMinute int           `json:"requests_per_minute" yaml:"requests_per_minute" validate:"min=0"`
	TokensPerMinute   int           `json:"tokens_per_minute" yaml:"tokens_per_minute" validate:"min=0"`
	PollInterval      time.Duration `json:"poll_interval" yaml:"poll_interval" validate:"min=0"`
}

// Budget ledger backends.
const (
	BudgetBackendMemory = "memory"
	BudgetBackendRedis  = "redis"
)

// BudgetConfig controls token budget enforcement.
type BudgetConfig struct {
	Enabled bool                `json:"enabled" yaml:"enabled"`
	Backend string              `json:"backend" yaml:"backend" validate:"omitempty,oneof=memory redis"`
	Limits  domain.BudgetLimits `json:"limits" yaml:"limits"`
}

// EmbeddingConfig controls the embedding service.
type EmbeddingConfig struct {
	CacheSize           int     `json:"cache_size" yaml:"cache_size" validate:"min=0"`
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold" validate:"min=0,max=1"`
	DuplicateThreshold  float64 `json:"duplicate_threshold" yaml:"duplicate_threshold" validate:"min=0,max=1"`
	BatchConcurrency    int     `json:"batch_concurrency" yaml:"batch_concurrency" validate:"min=1"`
}

// RedisConfig holds connection settings for the Redis budget ledger.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"-" yaml:"-"` // Sensitive
	DB       int    `json:"db" yaml:"db" validate:"min=0"`
	// KeyPrefix namespaces ledger keys.
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// TemporalConfig holds worker connection settings.
type TemporalConfig struct {
	HostPort  string `json:"host_port" yaml:"host_port"`
	Namespace string `json:"namespace" yaml:"namespace"`
	TaskQueue string `json:"task_queue" yaml:"task_queue"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}
