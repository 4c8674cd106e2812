package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/coach-ai-platform/internal/config"
	"github.com/wolfman30/coach-ai-platform/internal/llm"
	"github.com/wolfman30/coach-ai-platform/pkg/logging"
)

// AWSConfigLoader loads the shared AWS SDK configuration.
type AWSConfigLoader func(ctx context.Context) (aws.Config, error)

// LLMBackend is the provider client selected from config plus the model id
// the completer should request.
type LLMBackend struct {
	Client   llm.LLMClient
	Model    string
	Provider string
	close    []func() error
}

// Close releases provider connections.
func (b *LLMBackend) Close() error {
	var firstErr error
	for _, fn := range b.close {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BuildLLMClient selects the completion provider named by LLM_PROVIDER:
// bedrock, gemini, bedrock+gemini (gemini as fallback) or stub.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (*LLMBackend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	switch provider := strings.ToLower(strings.TrimSpace(cfg.LLMProvider)); provider {
	case "", "stub":
		logger.Warn("no LLM provider configured; using stub coach replies")
		return &LLMBackend{Client: llm.NewStubLLMClient(), Model: "stub", Provider: "stub"}, nil

	case "bedrock":
		client, err := buildBedrock(ctx, cfg, loadAWS)
		if err != nil {
			return nil, err
		}
		logger.Info("llm provider configured", "provider", provider, "model", cfg.BedrockModelID)
		return &LLMBackend{Client: client, Model: cfg.BedrockModelID, Provider: provider}, nil

	case "gemini":
		client, err := llm.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini: %w", err)
		}
		logger.Info("llm provider configured", "provider", provider, "model", cfg.GeminiModelID)
		return &LLMBackend{Client: client, Model: cfg.GeminiModelID, Provider: provider, close: []func() error{client.Close}}, nil

	case "bedrock+gemini":
		primary, err := buildBedrock(ctx, cfg, loadAWS)
		if err != nil {
			return nil, err
		}
		backend := &LLMBackend{Model: cfg.BedrockModelID, Provider: provider}
		var fallback llm.LLMClient
		if gemini, err := llm.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID); err != nil {
			logger.Warn("gemini fallback unavailable", "error", err)
		} else {
			fallback = gemini
			backend.close = append(backend.close, gemini.Close)
		}
		backend.Client = llm.NewFallbackLLMClient(primary, fallback, logger.WithComponent("llm"))
		logger.Info("llm provider configured", "provider", provider, "model", cfg.BedrockModelID, "fallback", fallback != nil)
		return backend, nil

	default:
		return nil, fmt.Errorf("bootstrap: unknown LLM_PROVIDER %q", provider)
	}
}

func buildBedrock(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader) (*llm.BedrockLLMClient, error) {
	if strings.TrimSpace(cfg.BedrockModelID) == "" {
		return nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for bedrock")
	}
	if loadAWS == nil {
		return nil, fmt.Errorf("bootstrap: aws config loader is required for bedrock")
	}
	awsCfg, err := loadAWS(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	return llm.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg)), nil
}
