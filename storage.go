package portalAuth

import (
	"fmt"

	"github.com/MrEthical07/portalAuth/session"
	"github.com/redis/go-redis/v9"
)

// OpenStorage builds the persisted-session backend cfg selects. The
// returned close function releases backend resources and is never nil.
func OpenStorage(cfg StorageConfig) (session.Storage, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case StorageMemory:
		return session.NewMemoryStorage(), noop, nil
	case StorageFile:
		path := cfg.Path
		if path == "" {
			p, err := session.DefaultFilePath(cfg.Profile)
			if err != nil {
				return nil, noop, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
			}
			path = p
		}
		fs, err := session.NewFileStorage(path, cfg.Passphrase)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return fs, noop, nil
	case StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		return session.NewRedisStorage(client, cfg.RedisPrefix, cfg.RedisTTL), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: unknown backend %q", ErrStorageUnavailable, cfg.Backend)
	}
}
