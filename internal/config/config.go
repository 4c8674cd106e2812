package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
	SignupPath         string

	// LLM provider: bedrock, gemini, bedrock+gemini or stub
	LLMProvider         string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModelID       string
	LLMTimeout          time.Duration
	LLMTemperature      float64
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DatabaseURL   string

	StripeWebhookSecret string
	SupabaseJWTSecret   string

	// Demo gate and sessions
	DemoMaxInteractions int
	DemoSuggestionLimit int
	DemoSessionTTL      time.Duration
	DemoVariantsFile    string

	// Per-category coach limits within RateLimitWindow
	DemoRateLimit   int
	ChatRateLimit   int
	RateLimitWindow time.Duration

	// Per-IP HTTP limits
	HTTPRateLimitRPS   float64
	HTTPRateLimitBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		SignupPath:         getEnv("SIGNUP_PATH", "/signup"),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "stub"))),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		LLMTemperature:      getEnvAsFloat("LLM_TEMPERATURE", 0.7),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		SupabaseJWTSecret:   getEnv("SUPABASE_JWT_SECRET", ""),

		DemoMaxInteractions: getEnvAsInt("DEMO_MAX_INTERACTIONS", 3),
		DemoSuggestionLimit: getEnvAsInt("DEMO_SUGGESTION_LIMIT", 2),
		DemoSessionTTL:      getEnvAsDuration("DEMO_SESSION_TTL", 30*time.Minute),
		DemoVariantsFile:    getEnv("DEMO_VARIANTS_FILE", ""),

		DemoRateLimit:   getEnvAsInt("DEMO_RATE_LIMIT", 10),
		ChatRateLimit:   getEnvAsInt("CHAT_RATE_LIMIT", 30),
		RateLimitWindow: getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),

		HTTPRateLimitRPS:   getEnvAsFloat("HTTP_RATE_LIMIT_RPS", 5),
		HTTPRateLimitBurst: getEnvAsInt("HTTP_RATE_LIMIT_BURST", 20),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
