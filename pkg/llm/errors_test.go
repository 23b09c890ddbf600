package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypeRetryable(t *testing.T) {
	assert.True(t, ErrorTypeRateLimit.Retryable())
	assert.True(t, ErrorTypeTransient.Retryable())
	assert.True(t, ErrorTypeEmptyResponse.Retryable())
	assert.False(t, ErrorTypeAuth.Retryable())
	assert.False(t, ErrorTypeBadPrompt.Retryable())
	assert.False(t, ErrorTypeMalformedJSON.Retryable())
	assert.False(t, ErrorTypeUnknown.Retryable())
}

func TestTypeOfCompletionError(t *testing.T) {
	err := NewError(ErrorTypeAuth, "bad key")
	assert.Equal(t, ErrorTypeAuth, TypeOf(err))

	wrapped := fmt.Errorf("outer: %w", WrapError(ErrorTypeRateLimit, "throttled", errors.New("429")))
	assert.Equal(t, ErrorTypeRateLimit, TypeOf(wrapped))
}

func TestTypeOfInfersFromText(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorType
	}{
		{errors.New("HTTP 429 Too Many Requests"), ErrorTypeRateLimit},
		{errors.New("monthly quota exceeded"), ErrorTypeRateLimit},
		{errors.New("401 unauthorized"), ErrorTypeAuth},
		{errors.New("invalid api key provided"), ErrorTypeAuth},
		{errors.New("503 service unavailable"), ErrorTypeTransient},
		{errors.New("unexpected EOF"), ErrorTypeTransient},
		{errors.New("request timeout after 60s"), ErrorTypeTransient},
		{errors.New("something odd happened"), ErrorTypeUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TypeOf(tc.err), "error: %v", tc.err)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewError(ErrorTypeTransient, "flaky")))
	assert.False(t, IsRetryable(NewError(ErrorTypeBadPrompt, "too long")))
	assert.False(t, IsRetryable(errors.New("mystery failure")))
}

func TestCompletionErrorMessage(t *testing.T) {
	err := WrapError(ErrorTypeTransient, "server error", errors.New("502 bad gateway"))
	assert.Contains(t, err.Error(), "transient")
	assert.Contains(t, err.Error(), "502 bad gateway")
	assert.ErrorContains(t, err.Unwrap(), "502")
}
