package configuration

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvProvider     = "THEMIS_PROVIDER"
	EnvModel        = "THEMIS_MODEL"
	EnvAPIKey       = "THEMIS_API_KEY"
	EnvBaseURL      = "THEMIS_BASE_URL"
	EnvRedisAddr    = "THEMIS_REDIS_ADDR"
	EnvRedisPass    = "THEMIS_REDIS_PASSWORD"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
)

// ErrMissingAPIKey indicates a hosted provider was selected without credentials.
var ErrMissingAPIKey = errors.New("api key required for provider")

// Load builds a Config from defaults, an optional YAML file, and environment
// overrides, in that order. The result is validated and hosted providers
// must have an API key.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if cfg.LLM.RequiresAPIKey() && cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, cfg.LLM.Provider)
	}
	return cfg, nil
}

// Read is Load without the credential check, for processes that never call
// the LLM provider.
func Read(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	ApplyEnv(cfg, os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg using getenv.
// Vendor-specific key variables are used only when THEMIS_API_KEY is unset.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvProvider); v != "" {
		cfg.LLM.Provider = strings.ToLower(v)
	}
	if v := getenv(EnvModel); v != "" {
		cfg.LLM.Model = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := getenv(EnvRedisAddr); v != "" {
		cfg.Redis.Addr = v
	}
	if v := getenv(EnvRedisPass); v != "" {
		cfg.Redis.Password = v
	}

	switch {
	case getenv(EnvAPIKey) != "":
		cfg.LLM.APIKey = getenv(EnvAPIKey)
	case cfg.LLM.Provider == ProviderOpenAI:
		cfg.LLM.APIKey = getenv(EnvOpenAIKey)
	case cfg.LLM.Provider == ProviderAnthropic:
		cfg.LLM.APIKey = getenv(EnvAnthropicKey)
	}
}
