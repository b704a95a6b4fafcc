package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agora/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens when Redis cannot answer.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// RateLimitBypass skips Redis limits entirely. Development and test profiles set it.
var RateLimitBypass bool

var errNoRedis = errors.New("redis client is nil")

// CheckRateLimit increments the counter for resource/id and reports whether the
// caller is still within limit for the current window.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if RateLimitBypass {
		return true, nil
	}
	if rdb == nil {
		return false, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	var incr *redis.IntCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		observability.RedisErrors.WithLabelValues("rate_limit").Inc()
		return false, err
	}
	return incr.Val() <= int64(limit), nil
}

// RateLimit limits a route to limit calls per window, keyed by user when
// authenticated and by IP otherwise. Redis failures fail open.
// Credential endpoints use RateLimitWithPolicy with FailClosed instead.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name)
}

// RateLimitWithPolicy is RateLimit with an explicit failure policy. A nil
// client means limits are not configured and every request passes.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil {
			return c.Next()
		}
		id := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok {
			id = fmt.Sprintf("user:%d", uid)
		}

		allowed, err := CheckRateLimit(c.UserContext(), rdb, name, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit unavailable", "resource", name, "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "rate limit unavailable"})
			}
			return c.Next()
		}
		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
