// Package retry implements the single retry policy shared by every outbound
// LLM call: a bounded attempt loop with exponential backoff and a pluggable
// retryability predicate.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahrav/go-themis/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
)

var (
	errMaxAttemptsInvalid = errors.New("maxAttempts must be greater than 0")
	errMaxIntervalInvalid = errors.New("maxInterval must be >= initialInterval")
	errMultiplierInvalid  = errors.New("multiplier must be >= 1.0")
)

// Predicate reports whether err is worth another attempt.
type Predicate func(err error) bool

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier runs an operation up to MaxAttempts times. It is safe for
// concurrent use; each Do call keeps its own attempt counter.
type Retrier struct {
	config    configuration.RetryConfig
	retryable Predicate
	sleep     SleepFunc
	logger    *slog.Logger
	stats     *retryStats
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithPredicate replaces the default llmerrors.Retryable classification.
func WithPredicate(p Predicate) Option {
	return func(r *Retrier) { r.retryable = p }
}

// WithSleep replaces the timer-based wait between attempts.
func WithSleep(s SleepFunc) Option {
	return func(r *Retrier) { r.sleep = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retrier) { r.logger = l }
}

// New validates cfg and returns a Retrier.
func New(cfg configuration.RetryConfig, opts ...Option) (*Retrier, error) {
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, cfg.MaxAttempts)
	}
	if cfg.MaxInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return nil, fmt.Errorf("%w, MaxInterval: %v, InitialInterval: %v", errMaxIntervalInvalid, cfg.MaxInterval, cfg.InitialInterval)
	}
	if cfg.Multiplier < 1.0 {
		return nil, fmt.Errorf("%w, got %f", errMultiplierInvalid, cfg.Multiplier)
	}

	r := &Retrier{
		config:    cfg,
		retryable: llmerrors.Retryable,
		sleep:     sleepContext,
		logger:    slog.Default().With("component", "retry"),
		stats:     &retryStats{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The error returned after exhaustion wraps both
// ErrMaxRetriesExceeded and the last error, so its classification survives.
func Do[T any](ctx context.Context, r *Retrier, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		result, err := fn(ctx, attempt)
		r.stats.totalAttempts.Add(1)

		if err == nil {
			if attempt > 1 {
				r.stats.successfulRetries.Add(1)
				r.logger.Info("request succeeded after retry", "attempt", attempt)
			} else {
				r.stats.successfulFirstAttempts.Add(1)
			}
			return result, nil
		}

		if !r.retryable(err) {
			r.stats.nonRetryable.Add(1)
			r.logger.Debug("non-retryable error", "attempt", attempt, "error", err)
			return result, err
		}
		lastErr = err

		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.calculateBackoff(attempt, err)
		r.stats.recordBackoff(delay)
		r.logger.Warn("retrying after backoff",
			"attempt", attempt,
			"delay", delay,
			"error", err)

		if err := r.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("retry interrupted after %d attempts: %w", attempt, errors.Join(err, lastErr))
		}
	}

	r.stats.failedRetries.Add(1)
	return zero, fmt.Errorf("%w after %d attempts: %w", llmerrors.ErrMaxRetriesExceeded, r.config.MaxAttempts, lastErr)
}

// Run is Do for operations that produce only an error.
func (r *Retrier) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, r, func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
