package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/coach-ai-platform/internal/billing"
	"github.com/wolfman30/coach-ai-platform/internal/coach"
	appconfig "github.com/wolfman30/coach-ai-platform/internal/config"
	"github.com/wolfman30/coach-ai-platform/internal/ratelimit"
	"github.com/wolfman30/coach-ai-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool connects to DATABASE_URL, returning nil when unset or
// unreachable so the demo can run without a database.
func BuildPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Warn("postgres config invalid", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Warn("postgres not available", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// BuildRateLimiter returns the Redis fixed-window limiter when Redis is
// available and an in-process token bucket otherwise.
func BuildRateLimiter(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) coach.RateLimiter {
	if cfg == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient != nil {
		logger.Info("coach rate limits backed by redis", "window", cfg.RateLimitWindow)
		return ratelimit.NewRedisLimiter(redisClient, map[string]ratelimit.Limit{
			coach.CategoryDemo: {Max: cfg.DemoRateLimit, Window: cfg.RateLimitWindow},
			coach.CategoryChat: {Max: cfg.ChatRateLimit, Window: cfg.RateLimitWindow},
		}, logger.WithComponent("ratelimit"))
	}
	logger.Warn("redis not configured; coach rate limits are per-process")
	return categoryLimiter{
		coach.CategoryDemo: ratelimit.NewMemoryLimiterForWindow(cfg.DemoRateLimit, cfg.RateLimitWindow),
		coach.CategoryChat: ratelimit.NewMemoryLimiterForWindow(cfg.ChatRateLimit, cfg.RateLimitWindow),
	}
}

// categoryLimiter routes each category to its own in-process bucket.
type categoryLimiter map[string]*ratelimit.MemoryLimiter

func (c categoryLimiter) CheckLimit(ctx context.Context, key, category string) error {
	l, ok := c[category]
	if !ok {
		return nil
	}
	return l.CheckLimit(ctx, key, category)
}

// BuildProcessedTracker prefers Redis for webhook idempotency markers and
// falls back to the processed_events table.
func BuildProcessedTracker(redisClient *redis.Client, pool *pgxpool.Pool) billing.ProcessedTracker {
	if redisClient != nil {
		return billing.NewRedisProcessedStore(redisClient, 0)
	}
	if pool != nil {
		return billing.NewPostgresProcessedStore(pool)
	}
	return nil
}
