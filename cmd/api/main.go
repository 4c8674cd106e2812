package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/coach-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/coach-ai-platform/internal/api/router"
	"github.com/wolfman30/coach-ai-platform/internal/app/bootstrap"
	"github.com/wolfman30/coach-ai-platform/internal/billing"
	"github.com/wolfman30/coach-ai-platform/internal/chat"
	"github.com/wolfman30/coach-ai-platform/internal/coach"
	appconfig "github.com/wolfman30/coach-ai-platform/internal/config"
	"github.com/wolfman30/coach-ai-platform/internal/demo"
	"github.com/wolfman30/coach-ai-platform/internal/llm"
	"github.com/wolfman30/coach-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/coach-ai-platform/internal/profiles"
	"github.com/wolfman30/coach-ai-platform/internal/ratelimit"
	"github.com/wolfman30/coach-ai-platform/pkg/logging"
)

const writeTimeoutMargin = 15 * time.Second

func main() {
	// Local development reads .env; deployed environments set real vars.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting coach-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsHandler, coachMetrics, llmMetrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	dbPool := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if dbPool != nil {
		defer dbPool.Close()
	}

	backend, err := bootstrap.BuildLLMClient(ctx, cfg, func(ctx context.Context) (aws.Config, error) {
		return mainconfig.LoadAWSConfig(ctx, cfg)
	}, logger)
	if err != nil {
		logger.Error("failed to configure LLM provider", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	svc := buildCoachService(cfg, backend, redisClient, coachMetrics, llmMetrics, logger)

	catalog, err := demo.LoadCatalog(cfg.DemoVariantsFile)
	if err != nil {
		logger.Error("failed to load demo variants", "error", err, "path", cfg.DemoVariantsFile)
		os.Exit(1)
	}
	registry := demo.NewRegistry(catalog, demo.RegistryConfig{
		SuggestionLimit: cfg.DemoSuggestionLimit,
		InputLimit:      cfg.DemoMaxInteractions,
		TTL:             cfg.DemoSessionTTL,
	}, coachMetrics, logger)
	go registry.Run(ctx, time.Minute)

	chatHandler, stripeHandler := buildMemberHandlers(cfg, dbPool, redisClient, svc, logger)

	var ipLimiter *ratelimit.MemoryLimiter
	if cfg.HTTPRateLimitRPS > 0 {
		ipLimiter = ratelimit.NewMemoryLimiter(cfg.HTTPRateLimitRPS, cfg.HTTPRateLimitBurst)
		defer ipLimiter.Close()
	}

	r := router.New(&router.Config{
		Logger:             logger,
		DemoHandler:        demo.NewHandler(registry, svc, cfg.SignupPath, logger),
		ChatHandler:        chatHandler,
		StripeWebhook:      stripeHandler,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		SupabaseJWTSecret:  cfg.SupabaseJWTSecret,
		IPLimiter:          ipLimiter,
		ReadinessChecks:    readinessChecks(redisClient, dbPool),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: serverWriteTimeout(cfg, svc),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// serverWriteTimeout covers the coach's full retry budget so a reply that
// succeeds on the last attempt still reaches the client.
func serverWriteTimeout(cfg *appconfig.Config, svc *coach.Service) time.Duration {
	callTimeout := cfg.LLMTimeout
	if callTimeout <= 0 {
		callTimeout = llm.DefaultCallTimeout
	}
	return svc.WorstCaseLatency(callTimeout) + writeTimeoutMargin
}

func setupMetrics() (http.Handler, *metrics.CoachMetrics, *metrics.LLMMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewCoachMetrics(reg), metrics.NewLLMMetrics(reg)
}

func buildCoachService(cfg *appconfig.Config, backend *bootstrap.LLMBackend, redisClient *redis.Client, coachMetrics *metrics.CoachMetrics, llmMetrics *metrics.LLMMetrics, logger *logging.Logger) *coach.Service {
	completer := llm.NewCoachCompleter(backend.Client, backend.Model, logger,
		llm.WithCallTimeout(cfg.LLMTimeout),
		llm.WithTemperature(float32(cfg.LLMTemperature)),
		llm.WithLLMMetrics(llmMetrics),
	)
	return coach.NewService(completer, bootstrap.BuildRateLimiter(cfg, redisClient, logger), logger,
		coach.WithMetrics(coachMetrics),
	)
}

// buildMemberHandlers wires the authenticated chat and billing webhook. Both
// need the profiles table, so they stay unmounted without a database.
func buildMemberHandlers(cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, svc *coach.Service, logger *logging.Logger) (*chat.Handler, *billing.StripeWebhookHandler) {
	if pool == nil {
		logger.Warn("DATABASE_URL not configured; member chat and billing webhooks disabled")
		return nil, nil
	}
	repo := profiles.NewRepository(pool)
	chatHandler := chat.NewHandler(repo, svc, logger)

	if cfg.StripeWebhookSecret == "" {
		if cfg.IsProduction() {
			logger.Error("STRIPE_WEBHOOK_SECRET is required in production; billing webhook disabled")
			return chatHandler, nil
		}
		logger.Warn("STRIPE_WEBHOOK_SECRET not configured; webhook signatures are not verified")
	}
	tracker := bootstrap.BuildProcessedTracker(redisClient, pool)
	return chatHandler, billing.NewStripeWebhookHandler(cfg.StripeWebhookSecret, repo, tracker, logger)
}

func readinessChecks(redisClient *redis.Client, pool *pgxpool.Pool) map[string]router.ReadinessCheck {
	checks := make(map[string]router.ReadinessCheck)
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	return checks
}
