// Package ratelimit throttles outbound LLM calls with two token buckets:
// requests per minute and tokens per minute. A call proceeds only when both
// buckets can pay for it.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-themis/internal/llm/configuration"
)

// ErrExceedsCapacity is returned when a single request needs more tokens
// than the bucket can ever hold.
var ErrExceedsCapacity = errors.New("request exceeds rate limit capacity")

// Capacity reports the tokens currently available in each bucket.
// A negative value means the bucket is unlimited.
type Capacity struct {
	Requests float64 `json:"requests"`
	Tokens   float64 `json:"tokens"`
}

// Limiter is a mutex-guarded pair of token buckets. Each bucket refills
// continuously at capacity/minute and never holds more than its capacity.
type Limiter struct {
	mu       sync.Mutex
	requests *rate.Limiter // nil when unlimited
	tokens   *rate.Limiter // nil when unlimited

	requestCap int
	tokenCap   int
	poll       time.Duration
	now        func() time.Time
	logger     *slog.Logger

	allowed atomic.Int64
	denied  atomic.Int64
	waits   atomic.Int64
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock injects the time source used for refill calculations.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New builds a Limiter from cfg. A zero per-minute value leaves that
// bucket unlimited.
func New(cfg configuration.RateLimitConfig, opts ...Option) (*Limiter, error) {
	if err := validateRateLimitConfig(cfg); err != nil {
		return nil, err
	}

	l := &Limiter{
		requestCap: cfg.RequestsPerMinute,
		tokenCap:   cfg.TokensPerMinute,
		poll:       cfg.PollInterval,
		now:        time.Now,
		logger:     slog.Default().With("component", "ratelimit"),
	}
	if l.poll <= 0 {
		l.poll = configuration.DefaultPollInterval
	}
	for _, opt := range opts {
		opt(l)
	}

	start := l.now()
	l.requests = newBucket(cfg.RequestsPerMinute, start)
	l.tokens = newBucket(cfg.TokensPerMinute, start)
	return l, nil
}

// newBucket returns a full bucket of perMinute tokens refilled at
// perMinute/60 per second.
func newBucket(perMinute int, now time.Time) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	b := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	// Start full regardless of how far the injected clock is from the zero time.
	b.SetBurstAt(now, perMinute)
	return b
}

// CheckRequest takes one request and estimatedTokens tokens if both buckets
// have enough. Otherwise it leaves both buckets untouched and returns false.
func (l *Limiter) CheckRequest(estimatedTokens int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !hasCapacity(l.requests, now, 1) || !hasCapacity(l.tokens, now, estimatedTokens) {
		l.denied.Add(1)
		return false
	}
	if l.requests != nil {
		l.requests.AllowN(now, 1)
	}
	if l.tokens != nil && estimatedTokens > 0 {
		l.tokens.AllowN(now, estimatedTokens)
	}
	l.allowed.Add(1)
	return true
}

func hasCapacity(b *rate.Limiter, now time.Time, n int) bool {
	if b == nil || n <= 0 {
		return true
	}
	return b.TokensAt(now) >= float64(n)
}

// WaitForCapacity polls until CheckRequest succeeds. It has no deadline of
// its own; callers bound it through ctx.
func (l *Limiter) WaitForCapacity(ctx context.Context, estimatedTokens int) error {
	if l.tokenCap > 0 && estimatedTokens > l.tokenCap {
		return fmt.Errorf("%w: need %d tokens, bucket holds %d", ErrExceedsCapacity, estimatedTokens, l.tokenCap)
	}

	if l.CheckRequest(estimatedTokens) {
		return nil
	}
	l.waits.Add(1)
	l.logger.Debug("waiting for rate limit capacity", "tokens", estimatedTokens)

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.CheckRequest(estimatedTokens) {
				return nil
			}
		}
	}
}

// Capacity returns the tokens available in each bucket right now.
func (l *Limiter) Capacity() Capacity {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c := Capacity{Requests: -1, Tokens: -1}
	if l.requests != nil {
		c.Requests = l.requests.TokensAt(now)
	}
	if l.tokens != nil {
		c.Tokens = l.tokens.TokensAt(now)
	}
	return c
}

// retryAfter estimates whole seconds until a request of n tokens fits,
// with a floor of one second.
func (l *Limiter) retryAfter(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	wait := 0.0
	if l.requests != nil {
		wait = math.Max(wait, deficitSeconds(l.requests, now, 1))
	}
	if l.tokens != nil {
		wait = math.Max(wait, deficitSeconds(l.tokens, now, n))
	}
	return max(int(math.Ceil(wait)), 1)
}

func deficitSeconds(b *rate.Limiter, now time.Time, n int) float64 {
	missing := float64(n) - b.TokensAt(now)
	if missing <= 0 || b.Limit() <= 0 {
		return 0
	}
	return missing / float64(b.Limit())
}
