package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-themis/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
	"github.com/ahrav/go-themis/internal/llm/transport"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, rpm, tpm int, clock *fakeClock) *Limiter {
	t.Helper()
	l, err := New(configuration.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: rpm,
		TokensPerMinute:   tpm,
		PollInterval:      time.Millisecond,
	}, WithClock(clock.Now))
	require.NoError(t, err)
	return l
}

func TestNew_RejectsNegativeCapacity(t *testing.T) {
	_, err := New(configuration.RateLimitConfig{Enabled: true, RequestsPerMinute: -1})
	assert.Error(t, err)

	_, err = New(configuration.RateLimitConfig{Enabled: true, TokensPerMinute: -5})
	assert.Error(t, err)
}

func TestCheckRequest_SingleRequestCapacity(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, 1, 60, clock)

	assert.True(t, l.CheckRequest(30), "first request fits both buckets")
	assert.False(t, l.CheckRequest(30), "request bucket is empty within the same second")

	c := l.Capacity()
	assert.InDelta(t, 0, c.Requests, 1e-9)
	assert.InDelta(t, 30, c.Tokens, 1e-9, "failed check leaves tokens untouched")
}

func TestCheckRequest_TokenBucketBoundary(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, 10, 60, clock)

	assert.True(t, l.CheckRequest(30))
	assert.True(t, l.CheckRequest(30), "exactly 60 tokens available covers two 30-token requests")
	assert.False(t, l.CheckRequest(1))

	c := l.Capacity()
	assert.InDelta(t, 8, c.Requests, 1e-9, "request bucket untouched by the token failure")
}

func TestCheckRequest_RefillCapsAtCapacity(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, 1, 60, clock)

	require.True(t, l.CheckRequest(60))
	assert.False(t, l.CheckRequest(1))

	clock.Advance(30 * time.Second)
	c := l.Capacity()
	assert.InDelta(t, 0.5, c.Requests, 1e-9)
	assert.InDelta(t, 30, c.Tokens, 1e-9)

	clock.Advance(10 * time.Minute)
	c = l.Capacity()
	assert.InDelta(t, 1, c.Requests, 1e-9, "never over-fills")
	assert.InDelta(t, 60, c.Tokens, 1e-9, "never over-fills")
	assert.True(t, l.CheckRequest(60))
}

func TestCheckRequest_UnlimitedBuckets(t *testing.T) {
	l := newTestLimiter(t, 0, 0, newFakeClock())
	for range 1000 {
		require.True(t, l.CheckRequest(1_000_000))
	}
	assert.Equal(t, Capacity{Requests: -1, Tokens: -1}, l.Capacity())
}

func TestCheckRequest_ConcurrentNeverOverspends(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, 50, 1000, clock)

	var granted atomic.Int32
	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.CheckRequest(10) {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(50), granted.Load())
}

func TestWaitForCapacity(t *testing.T) {
	t.Run("returns_once_refilled", func(t *testing.T) {
		clock := newFakeClock()
		l := newTestLimiter(t, 1, 60, clock)
		require.True(t, l.CheckRequest(10))

		done := make(chan error, 1)
		go func() { done <- l.WaitForCapacity(context.Background(), 10) }()

		time.Sleep(5 * time.Millisecond)
		clock.Advance(time.Minute)

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("WaitForCapacity did not observe refill")
		}
		assert.Equal(t, int64(1), l.Stats().Waits)
	})

	t.Run("honours_context", func(t *testing.T) {
		clock := newFakeClock()
		l := newTestLimiter(t, 1, 60, clock)
		require.True(t, l.CheckRequest(10))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, l.WaitForCapacity(ctx, 10), context.DeadlineExceeded)
	})

	t.Run("rejects_impossible_request", func(t *testing.T) {
		l := newTestLimiter(t, 1, 60, newFakeClock())
		assert.ErrorIs(t, l.WaitForCapacity(context.Background(), 61), ErrExceedsCapacity)
	})
}

func TestMiddleware(t *testing.T) {
	ok := transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		return &transport.Response{Content: "ok"}, nil
	})

	t.Run("reject_mode_returns_rate_limit_error", func(t *testing.T) {
		clock := newFakeClock()
		l := newTestLimiter(t, 1, 60, clock)
		h := transport.Chain(ok, l.Middleware(ModeReject))

		_, err := h.Handle(context.Background(), &transport.Request{EstimatedTokens: 30})
		require.NoError(t, err)

		_, err = h.Handle(context.Background(), &transport.Request{EstimatedTokens: 30})
		var rlErr *llmerrors.RateLimitError
		require.ErrorAs(t, err, &rlErr)
		assert.True(t, rlErr.LocalLimit)
		assert.Equal(t, 60, rlErr.RetryAfter, "one request per minute refills in 60s")
		assert.True(t, llmerrors.Retryable(err))
	})

	t.Run("wait_mode_passes_through", func(t *testing.T) {
		l := newTestLimiter(t, 5, 100, newFakeClock())
		h := transport.Chain(ok, l.Middleware(ModeWait))

		resp, err := h.Handle(context.Background(), &transport.Request{EstimatedTokens: 10})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Content)
		assert.InDelta(t, 90, l.Capacity().Tokens, 1e-9)
	})
}
