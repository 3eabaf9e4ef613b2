package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter counts with INCR and a TTL set on the first increment.
type RedisCounter struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisCounter namespaces keys under prefix.
func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	return &RedisCounter{redis: client, prefix: prefix}
}

func (c *RedisCounter) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	full := c.key(key)
	count, err := c.redis.Incr(ctx, full).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if count == 1 {
		if err := c.redis.Expire(ctx, full, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
	}
	return count, nil
}

func (c *RedisCounter) Get(ctx context.Context, key string) (int64, error) {
	n, err := c.redis.Get(ctx, c.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return n, nil
}

func (c *RedisCounter) Del(ctx context.Context, key string) error {
	if err := c.redis.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}
