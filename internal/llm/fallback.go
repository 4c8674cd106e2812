package llm

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"

	"github.com/wolfman30/coach-ai-platform/internal/chaterr"
	"github.com/wolfman30/coach-ai-platform/pkg/logging"
)

// FallbackLLMClient sends a request to the secondary provider when the
// primary fails for a reason the secondary might not share.
type FallbackLLMClient struct {
	primary  LLMClient
	fallback LLMClient
	logger   *logging.Logger
}

// NewFallbackLLMClient wraps primary. A nil fallback makes it a passthrough.
func NewFallbackLLMClient(primary, fallback LLMClient, logger *logging.Logger) *FallbackLLMClient {
	if primary == nil {
		panic("llm: primary client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{primary: primary, fallback: fallback, logger: logger}
}

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	kind := ClassifyError(err).Kind
	switch {
	case c.fallback == nil:
		return LLMResponse{}, err
	case ctx.Err() != nil:
		return LLMResponse{}, err
	case !worthFallingBack(err):
		c.logger.Info("llm: primary rejected request; not trying fallback", "kind", kind, "error", err)
		return LLMResponse{}, err
	}

	c.logger.Warn("llm: primary failed, attempting fallback", "kind", kind, "error", err)
	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("llm: fallback also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return LLMResponse{}, fallbackErr
	}

	c.logger.Info("llm: fallback succeeded after primary failure", "provider", fallbackResp.Provider)
	return fallbackResp, nil
}

// worthFallingBack is false for request-level rejections, which the
// secondary would refuse too. Credential and model-access errors are
// specific to the primary account and still fall back.
func worthFallingBack(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "ResourceNotFoundException", "UnrecognizedClientException":
			return true
		}
	}
	return ClassifyError(err).Kind != chaterr.KindInvalidRequestError
}
