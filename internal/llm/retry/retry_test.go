package retry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-themis/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
	"github.com/ahrav/go-themis/internal/llm/transport"
)

func testConfig() configuration.RetryConfig {
	return configuration.RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
	}
}

// recordingSleep captures requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestRetrier(t *testing.T, cfg configuration.RetryConfig, opts ...Option) (*Retrier, *recordingSleep) {
	t.Helper()
	rec := &recordingSleep{}
	r, err := New(cfg, append([]Option{WithSleep(rec.sleep)}, opts...)...)
	require.NoError(t, err)
	return r, rec
}

func retryableErr() error {
	return &llmerrors.ProviderError{Provider: "openai", StatusCode: 503, Message: "unavailable", Type: llmerrors.ErrorTypeProvider}
}

func TestNew_ValidatesConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*configuration.RetryConfig)
		wantErr error
	}{
		{"zero_attempts", func(c *configuration.RetryConfig) { c.MaxAttempts = 0 }, errMaxAttemptsInvalid},
		{"max_below_initial", func(c *configuration.RetryConfig) { c.MaxInterval = time.Millisecond }, errMaxIntervalInvalid},
		{"shrinking_multiplier", func(c *configuration.RetryConfig) { c.Multiplier = 0.5 }, errMultiplierInvalid},
		{"valid", func(*configuration.RetryConfig) {}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExponentialBackoff(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{"attempt_zero", 0, 0},
		{"first", 1, time.Second},
		{"second", 2, 2 * time.Second},
		{"third", 3, 4 * time.Second},
		{"capped", 10, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExponentialBackoff(tt.attempt, cfg))
		})
	}
}

func TestExponentialBackoff_JitterBounded(t *testing.T) {
	cfg := testConfig()
	cfg.UseJitter = true
	for range 100 {
		d := ExponentialBackoff(3, cfg)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 4*time.Second)
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	r, rec := newTestRetrier(t, testConfig())

	calls := 0
	got, err := Do(context.Background(), r, func(_ context.Context, attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", retryableErr()
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)

	stats := r.Stats()
	assert.Equal(t, int64(3), stats.TotalAttempts)
	assert.Equal(t, int64(1), stats.SuccessfulRetries)
	assert.Equal(t, 2*time.Second, stats.MaxBackoff)
}

func TestDo_ExhaustionPreservesLastError(t *testing.T) {
	r, rec := newTestRetrier(t, testConfig())

	calls := 0
	_, err := Do(context.Background(), r, func(context.Context, int) (int, error) {
		calls++
		return 0, retryableErr()
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, rec.delays, 2)
	assert.ErrorIs(t, err, llmerrors.ErrMaxRetriesExceeded)

	var provErr *llmerrors.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.True(t, provErr.IsRetryable())
	assert.Equal(t, int64(1), r.Stats().FailedRetries)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	r, rec := newTestRetrier(t, testConfig())
	authErr := &llmerrors.ProviderError{Provider: "openai", StatusCode: 401, Message: "bad key", Type: llmerrors.ErrorTypeAuth}

	calls := 0
	_, err := Do(context.Background(), r, func(context.Context, int) (int, error) {
		calls++
		return 0, authErr
	})

	assert.Same(t, authErr, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
	assert.Equal(t, int64(1), r.Stats().NonRetryable)
}

func TestDo_HonorsRetryAfter(t *testing.T) {
	r, rec := newTestRetrier(t, testConfig())

	_, err := Do(context.Background(), r, func(_ context.Context, attempt int) (int, error) {
		if attempt == 1 {
			return 0, &llmerrors.RateLimitError{Provider: "openai", RetryAfter: 7}
		}
		return 1, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second}, rec.delays)
}

func TestDo_CustomPredicate(t *testing.T) {
	errBoom := errors.New("boom")
	r, _ := newTestRetrier(t, testConfig(), WithPredicate(func(err error) bool { return errors.Is(err, errBoom) }))

	calls := 0
	_, err := Do(context.Background(), r, func(context.Context, int) (int, error) {
		calls++
		return 0, errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	t.Run("before_first_attempt", func(t *testing.T) {
		r, _ := newTestRetrier(t, testConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		_, err := Do(ctx, r, func(context.Context, int) (int, error) {
			called = true
			return 0, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("during_backoff", func(t *testing.T) {
		r, err := New(testConfig())
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())

		calls := 0
		_, err = Do(ctx, r, func(context.Context, int) (int, error) {
			calls++
			cancel()
			return 0, retryableErr()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
		assert.False(t, llmerrors.Retryable(err))
	})
}

func TestRetrier_Run(t *testing.T) {
	r, _ := newTestRetrier(t, testConfig())
	var calls atomic.Int32
	err := r.Run(context.Background(), func(context.Context) error {
		if calls.Add(1) == 1 {
			return context.DeadlineExceeded
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestParseRetryAfterValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  time.Duration
	}{
		{"int_seconds", 3, 3 * time.Second},
		{"string_seconds", "5", 5 * time.Second},
		{"float_seconds", 1.5, 1500 * time.Millisecond},
		{"duration", 2 * time.Second, 2 * time.Second},
		{"garbage", "soon", 0},
		{"past_date", "Mon, 02 Jan 2006 15:04:05 GMT", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfterValue(tt.value))
		})
	}
}

func TestMiddleware_RetriesProviderCalls(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var seenKeys []string
	core := transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		seenKeys = append(seenKeys, req.IdempotencyKey)
		httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		resp, err := server.Client().Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, &llmerrors.ProviderError{Provider: "test", StatusCode: resp.StatusCode, Type: llmerrors.ErrorTypeProvider}
		}
		return &transport.Response{Content: "done"}, nil
	})

	r, _ := newTestRetrier(t, testConfig())
	handler := transport.Chain(core, r.Middleware())

	resp, err := handler.Handle(context.Background(), &transport.Request{IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []string{"k1", "k1", "k1"}, seenKeys)
}
