package budget

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-themis/internal/domain"
)

// newTestRedis connects to THEMIS_REDIS_ADDR (default localhost:6379) and
// skips the test when no server answers.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("THEMIS_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLedger(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	prefix := "themis:test:" + uuid.NewString()
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	})

	l := NewRedisLedger(client, prefix)
	base := time.Now().Truncate(time.Millisecond)

	require.NoError(t, l.Append(ctx, Entry{ID: "a", WorkspaceID: "ws1", Tokens: 40, At: base.Add(-40 * 24 * time.Hour)}))
	require.NoError(t, l.Append(ctx, Entry{ID: "b", WorkspaceID: "ws1", Tokens: 30, At: base}))
	require.NoError(t, l.Append(ctx, Entry{ID: "c", WorkspaceID: "ws2", Tokens: 5, At: base}))

	ws1, err := l.Sum(ctx, "ws1", base.Add(-Retention*2))
	require.NoError(t, err)
	assert.Equal(t, int64(70), ws1)

	require.NoError(t, l.Prune(ctx, "ws1", base.Add(-Retention)))
	ws1, err = l.Sum(ctx, "ws1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(30), ws1)

	global, err := l.Sum(ctx, "", base)
	require.NoError(t, err)
	assert.Equal(t, int64(35), global)

	require.NoError(t, l.Remove(ctx, Entry{ID: "c", WorkspaceID: "ws2", Tokens: 5}))
	global, err = l.Sum(ctx, "", base)
	require.NoError(t, err)
	assert.Equal(t, int64(30), global)
}

func TestGuard_WithRedisLedger(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	prefix := "themis:test:" + uuid.NewString()
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	})

	g, err := NewGuard(testLimits(), WithLedger(NewRedisLedger(client, prefix)))
	require.NoError(t, err)

	res, err := g.Reserve(ctx, "ws1", 90)
	require.NoError(t, err)

	_, err = g.Reserve(ctx, "ws1", 20)
	var exceeded domain.BudgetExceededError
	require.ErrorAs(t, err, &exceeded)

	require.NoError(t, g.Settle(ctx, res, 40))
	used, err := g.Usage(ctx, "ws1", domain.BudgetDaily)
	require.NoError(t, err)
	assert.Equal(t, int64(40), used)
}
