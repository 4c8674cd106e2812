package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/coach-ai-platform/internal/billing"
	"github.com/wolfman30/coach-ai-platform/internal/chat"
	"github.com/wolfman30/coach-ai-platform/internal/demo"
	httpmiddleware "github.com/wolfman30/coach-ai-platform/internal/http/middleware"
	"github.com/wolfman30/coach-ai-platform/internal/ratelimit"
	"github.com/wolfman30/coach-ai-platform/pkg/logging"
)

// ReadinessCheck reports whether a backing service is reachable.
type ReadinessCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	DemoHandler        *demo.Handler
	ChatHandler        *chat.Handler
	StripeWebhook      *billing.StripeWebhookHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	SupabaseJWTSecret  string

	// IPLimiter throttles the chat APIs per client IP. Nil disables it.
	IPLimiter *ratelimit.MemoryLimiter

	// ReadinessChecks are probed by /ready, keyed by dependency name.
	ReadinessChecks map[string]ReadinessCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		public.Get("/ready", readinessCheck(cfg.ReadinessChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.StripeWebhook != nil {
			public.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
		}
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.RateLimit(cfg.IPLimiter))

		if cfg.DemoHandler != nil {
			api.Mount("/demo", cfg.DemoHandler.Routes())
		}
		if cfg.ChatHandler != nil {
			api.With(
				middleware.Compress(5),
				httpmiddleware.SupabaseJWT(cfg.SupabaseJWTSecret),
			).Post("/chat", cfg.ChatHandler.Handle)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readinessCheck(checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
