package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Batch is one atomic storage write: keys in Set are written and keys in
// Delete are removed together.
type Batch struct {
	Set    map[string]string
	Delete []string
}

// Empty reports whether the batch does nothing.
func (b Batch) Empty() bool {
	return len(b.Set) == 0 && len(b.Delete) == 0
}

// Storage is the durable key-value collaborator. Read returns only the keys
// that exist. Write applies a whole [Batch] or nothing.
//
//	Docs: docs/session.md
type Storage interface {
	Read(ctx context.Context, keys ...string) (map[string]string, error)
	Write(ctx context.Context, b Batch) error
}

// RedisStorage keeps the session under a key prefix in Redis. Writes run in
// a MULTI/EXEC transaction so a reader never sees a token without its user.
type RedisStorage struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStorage creates a Redis-backed [Storage]. prefix namespaces the
// keys (for example one prefix per operator profile). A positive ttl makes
// every written key expire; zero keeps them until deleted.
//
//	Docs: docs/session.md
func NewRedisStorage(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStorage {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStorage{
		redis:  client,
		prefix: strings.TrimSuffix(prefix, ":"),
		ttl:    ttl,
	}
}

// Client returns the underlying Redis client, so counters can share the
// connection and prefix.
func (s *RedisStorage) Client() redis.UniversalClient {
	return s.redis
}

// Prefix returns the key namespace without its trailing colon.
func (s *RedisStorage) Prefix() string {
	return s.prefix
}

func (s *RedisStorage) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + ":" + name
}

// Read fetches keys with a single MGET.
//
//	Performance: 1 Redis round-trip.
func (s *RedisStorage) Read(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}

	values, err := s.redis.MGet(ctx, full...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return out, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out[keys[i]] = str
	}
	return out, nil
}

// Write applies b inside one transaction.
//
//	Performance: 1 Redis round-trip (MULTI/EXEC).
func (s *RedisStorage) Write(ctx context.Context, b Batch) error {
	if b.Empty() {
		return nil
	}

	setKeys := make([]string, 0, len(b.Set))
	for k := range b.Set {
		setKeys = append(setKeys, k)
	}
	sort.Strings(setKeys)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range setKeys {
			pipe.Set(ctx, s.key(k), b.Set[k], s.ttl)
		}
		if len(b.Delete) > 0 {
			del := make([]string, len(b.Delete))
			for i, k := range b.Delete {
				del[i] = s.key(k)
			}
			pipe.Del(ctx, del...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
