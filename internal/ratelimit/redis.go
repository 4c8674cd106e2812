// Package ratelimit provides the throttles consulted before each coach call.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/coach-ai-platform/internal/chaterr"
	"github.com/wolfman30/coach-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("coach.internal.ratelimit")

// Limit is a fixed-window allowance: at most Max calls per Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// RedisLimiter counts calls per category and key in Redis so limits hold
// across API instances. Redis failures fail open.
type RedisLimiter struct {
	redis  *redis.Client
	limits map[string]Limit
	logger *logging.Logger
}

// NewRedisLimiter builds a limiter. Categories without an entry in limits
// are not throttled.
func NewRedisLimiter(client *redis.Client, limits map[string]Limit, logger *logging.Logger) *RedisLimiter {
	if client == nil {
		panic("ratelimit: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisLimiter{redis: client, limits: limits, logger: logger}
}

func redisKey(category, key string) string {
	return fmt.Sprintf("ratelimit:%s:%s", category, key)
}

// CheckLimit counts one call and returns a rate_limit_exceeded error once the
// window's allowance is spent.
func (l *RedisLimiter) CheckLimit(ctx context.Context, key, category string) error {
	limit, ok := l.limits[category]
	if !ok || limit.Max <= 0 || limit.Window <= 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "ratelimit.check")
	defer span.End()
	span.SetAttributes(attribute.String("ratelimit.category", category))

	rk := redisKey(category, key)
	count, ttl, err := l.incrementAndGet(ctx, rk, limit.Window)
	if err != nil {
		l.logger.Error("ratelimit: redis check failed, allowing call", "error", err, "category", category)
		span.RecordError(err)
		return nil
	}
	if count <= limit.Max {
		return nil
	}

	span.SetAttributes(attribute.Bool("ratelimit.exceeded", true))
	l.logger.Warn("ratelimit: limit exceeded",
		"category", category,
		"key", key,
		"count", count,
		"max", limit.Max,
	)
	return chaterr.New(chaterr.KindRateLimitExceeded, exceededMessage(ttl))
}

func (l *RedisLimiter) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		l.redis.Expire(ctx, key, window)
	}
	ttl, err := l.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		// a key without expiry would never reset
		l.redis.Expire(ctx, key, window)
		ttl = window
	}
	return int(count), ttl, nil
}

// Reset clears the counter for key in category.
func (l *RedisLimiter) Reset(ctx context.Context, key, category string) error {
	return l.redis.Del(ctx, redisKey(category, key)).Err()
}

func exceededMessage(wait time.Duration) string {
	secs := int(wait.Round(time.Second) / time.Second)
	if secs <= 1 {
		return "You're sending messages too quickly. Please wait a moment and try again."
	}
	return fmt.Sprintf("You're sending messages too quickly. Please wait %d seconds and try again.", secs)
}
