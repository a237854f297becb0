package ratelimit

import (
	"fmt"

	"github.com/ahrav/go-themis/internal/llm/configuration"
)

// validateRateLimitConfig rejects negative bucket sizes. Disabled configs
// are not checked.
func validateRateLimitConfig(cfg configuration.RateLimitConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.RequestsPerMinute < 0 {
		return fmt.Errorf("invalid rate limit: RequestsPerMinute cannot be negative (got %d)", cfg.RequestsPerMinute)
	}
	if cfg.TokensPerMinute < 0 {
		return fmt.Errorf("invalid rate limit: TokensPerMinute cannot be negative (got %d)", cfg.TokensPerMinute)
	}
	if cfg.PollInterval < 0 {
		return fmt.Errorf("invalid rate limit: PollInterval cannot be negative (got %v)", cfg.PollInterval)
	}
	return nil
}
