package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"

	"github.com/wolfman30/coach-ai-platform/internal/chaterr"
)

// Display messages attached to classified completion failures.
const (
	msgTimeout        = "The coach took too long to respond. Please try again."
	msgRateLimited    = "The coach is handling a lot of conversations right now. Please try again in a moment."
	msgServiceError   = "The coach is temporarily unavailable. Please try again."
	msgInvalidRequest = "The coach couldn't process that message. Try rephrasing it."
	msgEmptyResponse  = "The coach didn't come up with a reply. Please try rephrasing your message."
	msgUnknown        = "Something went wrong. Please try again."
)

// ClassifyError maps a vendor or transport failure to a typed chat error.
// Typed errors pass through unchanged and nil stays nil.
func ClassifyError(err error) *chaterr.Error {
	if err == nil {
		return nil
	}
	if ce, ok := chaterr.As(err); ok {
		return ce
	}
	kind := classifyKind(err)
	return chaterr.Wrap(kind, displayMessage(kind), err)
}

func displayMessage(kind chaterr.Kind) string {
	switch kind {
	case chaterr.KindTimeout:
		return msgTimeout
	case chaterr.KindRateLimitExceeded:
		return msgRateLimited
	case chaterr.KindServiceError:
		return msgServiceError
	case chaterr.KindInvalidRequestError:
		return msgInvalidRequest
	case chaterr.KindEmptyResponse:
		return msgEmptyResponse
	default:
		return msgUnknown
	}
}

func classifyKind(err error) chaterr.Kind {
	if errors.Is(err, ErrEmptyCompletion) {
		return chaterr.KindEmptyResponse
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return chaterr.KindTimeout
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return classifyBedrockCode(apiErr)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return classifyHTTPStatus(gErr.Code)
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return chaterr.KindInvalidRequestError
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return chaterr.KindTimeout
	}

	return classifyMessage(err.Error())
}

func classifyBedrockCode(apiErr smithy.APIError) chaterr.Kind {
	switch apiErr.ErrorCode() {
	case "ThrottlingException", "TooManyRequestsException", "ServiceQuotaExceededException":
		return chaterr.KindRateLimitExceeded
	case "ModelTimeoutException", "RequestTimeout", "RequestTimeoutException":
		return chaterr.KindTimeout
	case "ValidationException", "AccessDeniedException", "ResourceNotFoundException", "UnrecognizedClientException":
		return chaterr.KindInvalidRequestError
	case "InternalServerException", "ServiceUnavailableException", "ModelNotReadyException", "ModelErrorException", "ModelStreamErrorException":
		return chaterr.KindServiceError
	}
	switch apiErr.ErrorFault() {
	case smithy.FaultServer:
		return chaterr.KindServiceError
	case smithy.FaultClient:
		return chaterr.KindInvalidRequestError
	}
	return classifyMessage(apiErr.ErrorMessage())
}

func classifyHTTPStatus(code int) chaterr.Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return chaterr.KindRateLimitExceeded
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return chaterr.KindTimeout
	case code >= 500:
		return chaterr.KindServiceError
	case code >= 400:
		return chaterr.KindInvalidRequestError
	}
	return chaterr.KindUnknown
}

func classifyMessage(msg string) chaterr.Kind {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "rate limit", "ratelimit", "throttl", "too many requests", "quota", "resource_exhausted", "429"):
		return chaterr.KindRateLimitExceeded
	case containsAny(lower, "timeout", "timed out", "deadline exceeded"):
		return chaterr.KindTimeout
	case containsAny(lower, "unavailable", "overloaded", "internal server", "bad gateway", "500", "502", "503", "connection reset", "connection refused", "eof"):
		return chaterr.KindServiceError
	case containsAny(lower, "invalid", "validation", "malformed", "400"):
		return chaterr.KindInvalidRequestError
	}
	return chaterr.KindUnknown
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
