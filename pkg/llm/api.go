// Package llm provides interfaces and types for language model client implementations.
package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the human user.
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the AI assistant.
	RoleAssistant CompletionRole = "assistant"
)

// ResponseFormat constrains the shape of a completion response.
type ResponseFormat string

const (
	// FormatText requests free-form text output.
	FormatText ResponseFormat = "text"
	// FormatJSON requests a single valid JSON object as output.
	FormatJSON ResponseFormat = "json_object"
)

const (
	// TemperatureDeterministic is used for routing, scoring, and analysis calls
	// where reproducibility matters more than variety.
	TemperatureDeterministic = 0.0
	// TemperaturePersona is used for persona replies, where some variance
	// keeps the characters from sounding canned.
	TemperaturePersona = 0.7

	// DefaultMaxTokens bounds a single completion response.
	DefaultMaxTokens = 4096
)

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Role    CompletionRole
	Content string
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Messages       []CompletionMessage
	ResponseFormat ResponseFormat
	MaxTokens      int
	Temperature    float32
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	Content    string // Main response text
	StopReason string // Why the response stopped: "end_turn", "max_tokens", etc.
}

// Client defines the interface for language model interactions.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model identifier this client targets.
	GetModelName() string
}

// NewCompletionRequest creates a new completion request with default values.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:       messages,
		ResponseFormat: FormatText,
		MaxTokens:      DefaultMaxTokens,
		Temperature:    TemperaturePersona,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleAssistant, Content: content}
}

// DecodeJSON parses a JSON-object completion into dest. Models that lack a
// native JSON mode tend to wrap the object in markdown fences or prose, so
// the outermost balanced object is extracted before unmarshalling.
func DecodeJSON(content string, dest any) error {
	payload := extractJSONObject(content)
	if payload == "" {
		return NewError(ErrorTypeMalformedJSON, "no JSON object found in completion response")
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return WrapError(ErrorTypeMalformedJSON, "invalid JSON in completion response", err)
	}
	return nil
}

// extractJSONObject returns the first balanced top-level {...} in content,
// ignoring braces inside JSON string literals.
func extractJSONObject(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
