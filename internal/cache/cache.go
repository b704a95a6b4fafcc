package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"agora/internal/middleware"
	"agora/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	userKeyFormat = "user:%d"
	postKeyFormat = "post:%d"
)

const (
	UserTTL = 2 * time.Minute
	PostTTL = 2 * time.Minute

	// versionTTL must outlive any single fetch.
	versionTTL = time.Hour
)

func versionKey(key string) string {
	return "ver:" + key
}

func UserKey(userID uint) string {
	return fmt.Sprintf(userKeyFormat, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(postKeyFormat, postID)
}

// Cache is a JSON cache over an optional Redis client.
type Cache struct {
	rdb *redis.Client
}

// New wraps rdb. A nil client yields a cache that always misses.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Client exposes the underlying Redis client, which may be nil.
func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}

// GetJSON decodes key into dest and reports whether it was present.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c.Client() == nil {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key for ttl.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c.Client() == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

// Aside serves key from Redis or calls fetch, which must fill dest, and stores
// the result. Redis errors are logged and treated as misses. The result is not
// stored when key was invalidated while fetch ran, so a slow read cannot put
// back data older than the write that invalidated it.
func (c *Cache) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	prefix, _, _ := strings.Cut(key, ":")

	found, err := c.GetJSON(ctx, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}
	if found {
		observability.CacheLookups.WithLabelValues(prefix, "hit").Inc()
		return nil
	}
	observability.CacheLookups.WithLabelValues(prefix, "miss").Inc()

	version, verr := c.version(ctx, c.rdb, key)
	if err := fetch(); err != nil {
		return err
	}
	if verr != nil {
		middleware.Logger.WarnContext(ctx, "cache version read failed", "key", key, "error", verr)
		return nil
	}
	stored, err := c.setIfCurrent(ctx, key, version, dest, ttl)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	} else if !stored {
		observability.CacheLookups.WithLabelValues(prefix, "stale_skip").Inc()
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// version returns the invalidation counter for key. Missing counts as zero.
func (c *Cache) version(ctx context.Context, g getter, key string) (int64, error) {
	if c.Client() == nil {
		return 0, nil
	}
	v, err := g.Get(ctx, versionKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// setIfCurrent stores v under key only while the version of key is still want.
func (c *Cache) setIfCurrent(ctx context.Context, key string, want int64, v any, ttl time.Duration) (bool, error) {
	if c.Client() == nil {
		return false, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false, err
	}

	stored := false
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := c.version(ctx, tx, key)
		if err != nil {
			return err
		}
		if cur != want {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, ttl)
			return nil
		})
		stored = err == nil
		return err
	}, versionKey(key))
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

// Invalidate deletes keys and bumps their versions so in-flight fetches do
// not store what they read. Failures only cost staleness until the TTL passes.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c.Client() == nil || len(keys) == 0 {
		return
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, versionKey(key))
			pipe.Expire(ctx, versionKey(key), versionTTL)
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed", "keys", keys, "error", err)
	}
}

func (c *Cache) InvalidatePosts(ctx context.Context, postIDs ...uint) {
	keys := make([]string, 0, len(postIDs))
	for _, id := range postIDs {
		keys = append(keys, PostKey(id))
	}
	c.Invalidate(ctx, keys...)
}

func (c *Cache) InvalidateUser(ctx context.Context, userID uint) {
	c.Invalidate(ctx, UserKey(userID))
}
