package scheduler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lease guards a sweep run so only one instance executes it at a time.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisLease implements Lease with SET NX and a TTL. The TTL bounds how long
// a crashed holder can block other instances.
type RedisLease struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLease(client *redis.Client, key string, ttl time.Duration) *RedisLease {
	return &RedisLease{client: client, key: key, ttl: ttl}
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
}

func (l *RedisLease) Release(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}
