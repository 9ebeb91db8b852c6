package rbac

import (
	"context"
	"time"

	"github.com/angelmondragon/partsmarket-backend/pkg/redis"
)

// RoleCache stores serialized role sets keyed by user and auth version.
type RoleCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Key(userID string, authVersion int) string
}

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	RoleCacheKey(userID string, authVersion int) string
}

// RedisRoleCache backs RoleCache with the shared redis client.
type RedisRoleCache struct {
	store redisStore
}

func NewRedisRoleCache(store redisStore) *RedisRoleCache {
	return &RedisRoleCache{store: store}
}

func (c *RedisRoleCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.store.Get(ctx, key)
	if err != nil {
		if redis.IsNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (c *RedisRoleCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.store.Set(ctx, key, value, ttl)
}

// Key yields pm:auth:roles:{user}:v{version}; bumping the version orphans older entries.
func (c *RedisRoleCache) Key(userID string, authVersion int) string {
	return c.store.RoleCacheKey(userID, authVersion)
}
