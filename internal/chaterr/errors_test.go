package chaterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindRetryable(t *testing.T) {
	retryable := []Kind{KindTimeout, KindRateLimitExceeded, KindServiceError}
	for _, k := range retryable {
		assert.True(t, k.Retryable(), "%s should be retryable", k)
	}
	fatal := []Kind{KindInvalidRequest, KindInvalidRequestError, KindEmptyResponse, KindUnknown}
	for _, k := range fatal {
		assert.False(t, k.Retryable(), "%s should not be retryable", k)
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := Wrap(KindServiceError, "The coach is unavailable right now.", cause)

	assert.Equal(t, "The coach is unavailable right now.", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := &Error{Kind: KindTimeout}
	assert.Equal(t, "timeout", bare.Error())

	causeOnly := &Error{Kind: KindUnknown, Err: cause}
	assert.Equal(t, "socket closed", causeOnly.Error())
}

func TestKindOfThroughWrapping(t *testing.T) {
	err := fmt.Errorf("coach: attempt 2: %w", New(KindRateLimitExceeded, "slow down"))

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindRateLimitExceeded, kind)
	assert.True(t, Is(err, KindRateLimitExceeded))
	assert.False(t, Is(err, KindTimeout))

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, HTTPStatus(KindInvalidRequest))
	assert.Equal(t, 429, HTTPStatus(KindRateLimitExceeded))
	assert.Equal(t, 504, HTTPStatus(KindTimeout))
	assert.Equal(t, 502, HTTPStatus(KindServiceError))
	assert.Equal(t, 502, HTTPStatus(KindInvalidRequestError))
	assert.Equal(t, 502, HTTPStatus(KindEmptyResponse))
	assert.Equal(t, 502, HTTPStatus(KindUnknown))
}
