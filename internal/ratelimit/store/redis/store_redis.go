package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"caseguard/pkg/platform/sentinel"
)

// incrScript performs the increment, window creation, and TTL read as one
// atomic server-side step, so concurrent checks across processes cannot
// race the counter.
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

// RedisCounterStore implements ports.CounterStore on Redis. Use this when
// multiple engine instances must share one view of request counts; the
// in-memory store is per-process only.
type RedisCounterStore struct {
	client    *redis.Client
	keyPrefix string
}

// New creates a Redis-backed counter store.
func New(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{
		client:    client,
		keyPrefix: "caseguard:ratelimit:",
	}
}

// Incr atomically counts one request for key. Window expiry is enforced by
// the key TTL, so lazy reset comes for free.
func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	res, err := incrScript.Run(ctx, s.client, []string{s.keyPrefix + key}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("ratelimit incr: %w: %v", sentinel.ErrUnavailable, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("ratelimit incr: unexpected reply %v", res)
	}

	count, ok := res[0].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("ratelimit incr: unexpected count %v", res[0])
	}
	ttlMs, ok := res[1].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("ratelimit incr: unexpected ttl %v", res[1])
	}

	resetAt := time.Now().Add(time.Duration(ttlMs) * time.Millisecond)
	return int(count), resetAt, nil
}
