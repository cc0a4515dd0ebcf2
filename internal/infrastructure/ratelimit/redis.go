package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rl:"

// consumeScript increments the window counter and applies the block overlay
// in one round-trip. It returns {count, ttlMillis}; count is -1 when rejected.
var consumeScript = redis.NewScript(`
local blocked = redis.call('PTTL', KEYS[2])
if blocked > 0 then
  return {-1, blocked}
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
local ttl = redis.call('PTTL', KEYS[1])
if count > tonumber(ARGV[1]) then
  if tonumber(ARGV[3]) > 0 then
    redis.call('SET', KEYS[2], '1', 'PX', ARGV[3])
    return {-1, tonumber(ARGV[3])}
  end
  return {-1, ttl}
end
return {count, ttl}
`)

// RedisStore shares counters across instances through Redis.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Consume(ctx context.Context, key string, cfg Config) (Result, error) {
	keys := []string{keyPrefix + key, keyPrefix + key + ":blocked"}
	out, err := consumeScript.Run(ctx, s.client, keys,
		cfg.Points, cfg.Duration.Milliseconds(), cfg.BlockDuration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit consume: %w", err)
	}
	if len(out) != 2 {
		return Result{}, fmt.Errorf("ratelimit consume: unexpected reply %v", out)
	}

	ttl := time.Duration(out[1]) * time.Millisecond
	if ttl < 0 {
		ttl = 0
	}
	if out[0] < 0 {
		return Result{RetryAfter: ttl}, nil
	}
	return Result{Allowed: true, Remaining: cfg.Points - int(out[0]), RetryAfter: ttl}, nil
}
