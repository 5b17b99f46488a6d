package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SweepKey names the lease guarding the order expiry sweep.
const SweepKey = "ordercheckout:lease:expiry-sweep"

var (
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisLease is a named lock shared by all replicas. The holder keeps it by
// acquiring again before the TTL runs out.
type RedisLease struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

// NewRedisLease creates a lease identified by a random owner token.
func NewRedisLease(client *redis.Client, key string, ttl time.Duration) *RedisLease {
	return &RedisLease{
		client: client,
		key:    key,
		owner:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire takes a free lease or extends one this instance already holds.
func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if ok {
		return true, nil
	}

	extended, err := extendScript.Run(ctx, l.client, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis extend lease failed: %w", err)
	}
	return extended == 1, nil
}

// Release drops the lease if this instance holds it.
func (l *RedisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err(); err != nil {
		return fmt.Errorf("redis release lease failed: %w", err)
	}
	return nil
}

func (l *RedisLease) Close() error {
	return l.client.Close()
}

// Local grants the lease unconditionally. It serves single-replica deployments.
type Local struct{}

func (Local) Acquire(context.Context) (bool, error) { return true, nil }
func (Local) Release(context.Context) error         { return nil }
func (Local) Close() error                          { return nil }
