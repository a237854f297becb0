package budget

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger keeps usage in sorted sets scored by Unix milliseconds, one
// set for global usage and one per workspace. Members encode "id|tokens".
// The Guard's lock is per process, so two processes sharing a RedisLedger
// can each admit a reservation against the same remaining headroom.
type RedisLedger struct {
	client redis.Cmdable
	prefix string
}

// NewRedisLedger creates a ledger storing keys under prefix.
func NewRedisLedger(client redis.Cmdable, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = "themis:budget"
	}
	return &RedisLedger{client: client, prefix: prefix}
}

func (r *RedisLedger) key(workspaceID string) string {
	if workspaceID == "" {
		return r.prefix + ":global"
	}
	return r.prefix + ":ws:" + workspaceID
}

func member(e Entry) string {
	return e.ID + "|" + strconv.FormatInt(e.Tokens, 10)
}

func parseMemberTokens(m string) (int64, error) {
	idx := strings.LastIndexByte(m, '|')
	if idx < 0 {
		return 0, fmt.Errorf("malformed ledger member %q", m)
	}
	return strconv.ParseInt(m[idx+1:], 10, 64)
}

// Append implements Ledger.
func (r *RedisLedger) Append(ctx context.Context, e Entry) error {
	z := redis.Z{Score: float64(e.At.UnixMilli()), Member: member(e)}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range r.keysFor(e.WorkspaceID) {
			pipe.ZAdd(ctx, key, z)
			pipe.Expire(ctx, key, Retention+24*time.Hour)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append usage: %w", err)
	}
	return nil
}

// Remove implements Ledger.
func (r *RedisLedger) Remove(ctx context.Context, e Entry) error {
	m := member(e)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range r.keysFor(e.WorkspaceID) {
			pipe.ZRem(ctx, key, m)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove usage: %w", err)
	}
	return nil
}

// Sum implements Ledger.
func (r *RedisLedger) Sum(ctx context.Context, workspaceID string, since time.Time) (int64, error) {
	members, err := r.client.ZRangeByScore(ctx, r.key(workspaceID), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read usage: %w", err)
	}

	var total int64
	for _, m := range members {
		tokens, err := parseMemberTokens(m)
		if err != nil {
			return 0, err
		}
		total += tokens
	}
	return total, nil
}

// Prune implements Ledger. Only the global set and workspaceID's set are
// touched; other workspaces are pruned when they are next accessed.
func (r *RedisLedger) Prune(ctx context.Context, workspaceID string, cutoff time.Time) error {
	maxScore := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range r.keysFor(workspaceID) {
			pipe.ZRemRangeByScore(ctx, key, "-inf", maxScore)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to prune usage: %w", err)
	}
	return nil
}

func (r *RedisLedger) keysFor(workspaceID string) []string {
	if workspaceID == "" {
		return []string{r.key("")}
	}
	return []string{r.key(""), r.key(workspaceID)}
}
