package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/wolfman30/coach-ai-platform/internal/chaterr"
)

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "i/o wait" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want chaterr.Kind
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), chaterr.KindTimeout},
		{"canceled", context.Canceled, chaterr.KindTimeout},
		{"net timeout", fmt.Errorf("dial: %w", timeoutNetErr{}), chaterr.KindTimeout},
		{"bedrock throttling", &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}, chaterr.KindRateLimitExceeded},
		{"bedrock validation", &smithy.GenericAPIError{Code: "ValidationException", Message: "bad"}, chaterr.KindInvalidRequestError},
		{"bedrock model timeout", &smithy.GenericAPIError{Code: "ModelTimeoutException"}, chaterr.KindTimeout},
		{"bedrock unavailable", &smithy.GenericAPIError{Code: "ServiceUnavailableException"}, chaterr.KindServiceError},
		{"bedrock unknown server fault", &smithy.GenericAPIError{Code: "Weird", Fault: smithy.FaultServer}, chaterr.KindServiceError},
		{"bedrock unknown client fault", &smithy.GenericAPIError{Code: "Odd", Fault: smithy.FaultClient}, chaterr.KindInvalidRequestError},
		{"gemini 429", fmt.Errorf("llm: gemini completion failed: %w", &googleapi.Error{Code: http.StatusTooManyRequests}), chaterr.KindRateLimitExceeded},
		{"gemini 503", &googleapi.Error{Code: http.StatusServiceUnavailable}, chaterr.KindServiceError},
		{"gemini 504", &googleapi.Error{Code: http.StatusGatewayTimeout}, chaterr.KindTimeout},
		{"gemini 400", &googleapi.Error{Code: http.StatusBadRequest}, chaterr.KindInvalidRequestError},
		{"gemini blocked", fmt.Errorf("x: %w", &genai.BlockedError{}), chaterr.KindInvalidRequestError},
		{"empty completion", fmt.Errorf("llm: bedrock: %w", ErrEmptyCompletion), chaterr.KindEmptyResponse},
		{"message rate limit", errors.New("Rate limit reached for requests"), chaterr.KindRateLimitExceeded},
		{"message timeout", errors.New("request timed out"), chaterr.KindTimeout},
		{"message overloaded", errors.New("model is overloaded"), chaterr.KindServiceError},
		{"message invalid", errors.New("invalid prompt"), chaterr.KindInvalidRequestError},
		{"unrecognised", errors.New("kaboom"), chaterr.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := ClassifyError(tt.err)
			require.NotNil(t, ce)
			assert.Equal(t, tt.want, ce.Kind)
			assert.NotEmpty(t, ce.Error())
			assert.ErrorIs(t, ce, tt.err)
		})
	}
}

func TestClassifyError_PassThroughAndNil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil))

	typed := chaterr.New(chaterr.KindServiceError, "already typed")
	assert.Same(t, typed, ClassifyError(fmt.Errorf("wrapped: %w", typed)))
}

func TestClassifyError_DisplayMessages(t *testing.T) {
	assert.Equal(t, msgTimeout, ClassifyError(context.DeadlineExceeded).Error())
	assert.Equal(t, msgUnknown, ClassifyError(errors.New("kaboom")).Error())
}
