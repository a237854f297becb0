package retry

import (
	"errors"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/ahrav/go-themis/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
)

// minInterval keeps a zero InitialInterval from hot looping.
const minInterval = time.Millisecond

// AfterProvider is implemented by errors that carry a server-specified
// delay before the next attempt, typically from a Retry-After header.
type AfterProvider interface {
	// GetRetryAfter returns the recommended wait, or zero when none is known.
	GetRetryAfter() time.Duration
}

// ExponentialBackoff returns the delay before the attempt following
// attempt: InitialInterval × Multiplier^(attempt-1), capped at MaxInterval.
// With UseJitter the delay is drawn uniformly from [0, delay].
// Non-positive attempts yield zero.
func ExponentialBackoff(attempt int, cfg configuration.RetryConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := cfg.InitialInterval
	if base <= 0 {
		base = minInterval
	}
	mult := cfg.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(base) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxInterval > 0 && delay > float64(cfg.MaxInterval) {
		delay = float64(cfg.MaxInterval)
	}
	backoff := time.Duration(delay)

	if cfg.UseJitter {
		jitterMs := rand.Int64N(backoff.Milliseconds() + 1) // #nosec G404 -- non-cryptographic jitter is appropriate here
		return time.Duration(jitterMs) * time.Millisecond
	}
	return backoff
}

// calculateBackoff prefers provider guidance over the exponential schedule.
func (r *Retrier) calculateBackoff(attempt int, err error) time.Duration {
	if after := extractRetryAfter(err); after > 0 {
		return after
	}
	return ExponentialBackoff(attempt, r.config)
}

// extractRetryAfter finds a provider-specified delay anywhere in err's chain.
func extractRetryAfter(err error) time.Duration {
	var provider AfterProvider
	if errors.As(err, &provider) {
		if d := provider.GetRetryAfter(); d > 0 {
			return d
		}
	}

	var workflowErr *llmerrors.WorkflowError
	if errors.As(err, &workflowErr) && workflowErr.Details != nil {
		if raw, ok := workflowErr.Details["retry_after"]; ok {
			return parseRetryAfterValue(raw)
		}
	}
	return 0
}

// parseRetryAfterValue converts seconds given as a number or string, or an
// HTTP date, into a duration.
func parseRetryAfterValue(value any) time.Duration {
	switch v := value.(type) {
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case time.Duration:
		return v
	case string:
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
		for _, layout := range []string{time.RFC1123, time.RFC1123Z, time.RFC850, time.ANSIC} {
			if t, err := time.Parse(layout, v); err == nil {
				return max(time.Until(t), 0)
			}
		}
	}
	return 0
}
