// internal/access/cache.go
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/go-redis/redis/v8"
)

// RoleCache is a read-through cache of (locker, user) roles. A cached empty
// role means the pair has no role.
//
// Entries are versioned per pair. Get reports the generation it looked at
// and Set only fills that generation, so a fill that raced with Invalidate
// lands on a generation nobody reads anymore.
type RoleCache interface {
	Get(ctx context.Context, lockerID, userID uint) (role model.Role, generation int64, hit bool, err error)
	Set(ctx context.Context, lockerID, userID uint, generation int64, role model.Role) error
	Invalidate(ctx context.Context, lockerID, userID uint) error
}

const noRole = "-"

// RedisRoleCache keeps the current generation of each pair under
// <prefix>:<locker>:<user>:gen and the role itself under
// <prefix>:<locker>:<user>:<generation>. Generation keys do not expire.
type RedisRoleCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisRoleCache(client *redis.Client, ttl time.Duration) *RedisRoleCache {
	return &RedisRoleCache{client: client, ttl: ttl, prefix: "lockity:role"}
}

func (c *RedisRoleCache) generationKey(lockerID, userID uint) string {
	return fmt.Sprintf("%s:%d:%d:gen", c.prefix, lockerID, userID)
}

func (c *RedisRoleCache) roleKey(lockerID, userID uint, generation int64) string {
	return fmt.Sprintf("%s:%d:%d:%d", c.prefix, lockerID, userID, generation)
}

func (c *RedisRoleCache) generation(ctx context.Context, lockerID, userID uint) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(lockerID, userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read role generation: %w", err)
	}
	return gen, nil
}

func (c *RedisRoleCache) Get(ctx context.Context, lockerID, userID uint) (model.Role, int64, bool, error) {
	gen, err := c.generation(ctx, lockerID, userID)
	if err != nil {
		return "", 0, false, err
	}
	val, err := c.client.Get(ctx, c.roleKey(lockerID, userID, gen)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", gen, false, nil
		}
		return "", gen, false, fmt.Errorf("failed to read cached role: %w", err)
	}
	if val == noRole {
		return "", gen, true, nil
	}
	return model.Role(val), gen, true, nil
}

func (c *RedisRoleCache) Set(ctx context.Context, lockerID, userID uint, generation int64, role model.Role) error {
	val := string(role)
	if val == "" {
		val = noRole
	}
	if err := c.client.Set(ctx, c.roleKey(lockerID, userID, generation), val, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache role: %w", err)
	}
	return nil
}

// Invalidate moves the pair to a new generation. Entries of older
// generations are left to expire.
func (c *RedisRoleCache) Invalidate(ctx context.Context, lockerID, userID uint) error {
	if err := c.client.Incr(ctx, c.generationKey(lockerID, userID)).Err(); err != nil {
		return fmt.Errorf("failed to advance role generation: %w", err)
	}
	return nil
}
