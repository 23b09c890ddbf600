package ollama

import (
	"errors"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reclassroom/pkg/llm"
)

func TestStopReason(t *testing.T) {
	tests := []struct {
		name     string
		resp     api.ChatResponse
		expected string
	}{
		{"not done", api.ChatResponse{Done: false}, "incomplete"},
		{"stop", api.ChatResponse{Done: true, DoneReason: "stop"}, "end_turn"},
		{"empty reason", api.ChatResponse{Done: true, DoneReason: ""}, "end_turn"},
		{"length", api.ChatResponse{Done: true, DoneReason: "length"}, "max_tokens"},
		{"passthrough", api.ChatResponse{Done: true, DoneReason: "load"}, "load"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stopReason(&tt.resp))
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected llm.ErrorType
	}{
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connection refused"), llm.ErrorTypeTransient},
		{"model not found", errors.New(`model "llama3.1" not found, try pulling it first`), llm.ErrorTypeBadPrompt},
		{"context canceled", errors.New("context canceled"), llm.ErrorTypeTransient},
		{"timeout", errors.New("request timeout exceeded"), llm.ErrorTypeTransient},
		{"unknown", errors.New("something else entirely"), llm.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyError(tt.err)
			require.Error(t, classified)
			assert.Equal(t, tt.expected, llm.TypeOf(classified))
		})
	}

	assert.NoError(t, classifyError(nil))
}

func TestNewClientBadHostFallsBack(t *testing.T) {
	client := NewClient("://not-a-url", "llama3.1")
	require.NotNil(t, client)
	assert.Equal(t, "llama3.1", client.GetModelName())
}
