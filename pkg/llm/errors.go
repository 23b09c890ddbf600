package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies completion failures for retry decisions.
type ErrorType int8

const (
	// Retryable error types.

	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents HTTP 200 but no content errors.
	ErrorTypeEmptyResponse

	// Non-retryable error types.

	// ErrorTypeAuth represents authentication errors (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents malformed request errors (too long, violates policy).
	ErrorTypeBadPrompt
	// ErrorTypeMalformedJSON represents a response that failed the JSON-object contract.
	ErrorTypeMalformedJSON
	// ErrorTypeUnknown represents default for unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeMalformedJSON:
		return "malformed_json"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Retryable reports whether errors of this type are worth retrying.
func (et ErrorType) Retryable() bool {
	switch et {
	case ErrorTypeRateLimit, ErrorTypeTransient, ErrorTypeEmptyResponse:
		return true
	case ErrorTypeAuth, ErrorTypeBadPrompt, ErrorTypeMalformedJSON, ErrorTypeUnknown:
		return false
	default:
		return false
	}
}

// CompletionError carries a classified completion-service failure and its cause.
type CompletionError struct {
	Cause   error
	Message string
	Type    ErrorType
}

// Error implements the error interface.
func (e *CompletionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *CompletionError) Unwrap() error {
	return e.Cause
}

// NewError creates a CompletionError without an underlying cause.
func NewError(t ErrorType, message string) *CompletionError {
	return &CompletionError{Type: t, Message: message}
}

// WrapError creates a CompletionError wrapping an underlying cause.
func WrapError(t ErrorType, message string, cause error) *CompletionError {
	return &CompletionError{Type: t, Message: message, Cause: cause}
}

// TypeOf returns the classified type of err, or ErrorTypeUnknown when err is
// not a CompletionError and no class can be inferred from its text.
func TypeOf(err error) ErrorType {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return classifyByText(err)
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return TypeOf(err).Retryable()
}

// classifyByText infers an error class from provider error text. SDK error
// types differ per provider, so the fallback works off well-known substrings.
func classifyByText(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"):
		return ErrorTypeRateLimit
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"),
		strings.Contains(msg, "unauthorized"), strings.Contains(msg, "api key"):
		return ErrorTypeAuth
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"),
		strings.Contains(msg, "503"), strings.Contains(msg, "504"),
		strings.Contains(msg, "timeout"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "eof"), strings.Contains(msg, "overloaded"):
		return ErrorTypeTransient
	default:
		return ErrorTypeUnknown
	}
}
