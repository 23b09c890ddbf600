package anthropic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reclassroom/pkg/llm"
)

func TestEnsureAlternation(t *testing.T) {
	tests := []struct {
		name         string
		input        []llm.CompletionMessage
		expectSystem string
		expectMsgLen int
		expectErr    string
	}{
		{
			name:      "empty messages",
			input:     []llm.CompletionMessage{},
			expectErr: "message list cannot be empty",
		},
		{
			name: "system message extracted",
			input: []llm.CompletionMessage{
				llm.NewSystemMessage("You are the Head Librarian."),
				llm.NewUserMessage("Hello"),
			},
			expectSystem: "You are the Head Librarian.",
			expectMsgLen: 1,
		},
		{
			name: "multiple system messages concatenated",
			input: []llm.CompletionMessage{
				llm.NewSystemMessage("You are the Head Librarian."),
				llm.NewSystemMessage("Stay in character."),
				llm.NewUserMessage("Hello"),
			},
			expectSystem: "You are the Head Librarian.\n\nStay in character.",
			expectMsgLen: 1,
		},
		{
			name: "proper alternation maintained",
			input: []llm.CompletionMessage{
				llm.NewUserMessage("Hello"),
				llm.NewAssistantMessage("Hi"),
				llm.NewUserMessage("How are you?"),
			},
			expectMsgLen: 3,
		},
		{
			name: "consecutive user messages merged",
			input: []llm.CompletionMessage{
				llm.NewUserMessage("Hello"),
				llm.NewUserMessage("Anyone there?"),
			},
			expectMsgLen: 1,
		},
		{
			name: "trailing peer reply folded into user turn",
			input: []llm.CompletionMessage{
				llm.NewSystemMessage("You are the Director of IT Security."),
				llm.NewUserMessage("hi everyone"),
				llm.NewAssistantMessage("**Head Librarian:** We need e-book lending."),
			},
			expectSystem: "You are the Director of IT Security.",
			expectMsgLen: 1,
		},
		{
			name: "trailing run of peer replies folded into user turn",
			input: []llm.CompletionMessage{
				llm.NewUserMessage("what do you all think"),
				llm.NewAssistantMessage("**Head Librarian:** We need e-book lending."),
				llm.NewAssistantMessage("**City Treasurer:** Only within budget."),
			},
			expectMsgLen: 1,
		},
		{
			name:      "only system messages",
			input:     []llm.CompletionMessage{llm.NewSystemMessage("You are helpful.")},
			expectErr: "must have at least one non-system message",
		},
		{
			name:      "leading assistant message",
			input:     []llm.CompletionMessage{llm.NewAssistantMessage("Hi")},
			expectErr: "first message must be user role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, msgs, err := ensureAlternation(tt.input)
			if tt.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectSystem, system)
			require.Len(t, msgs, tt.expectMsgLen)
			assert.Equal(t, llm.RoleUser, msgs[0].Role)
			assert.Equal(t, llm.RoleUser, msgs[len(msgs)-1].Role)
			for i := 1; i < len(msgs); i++ {
				assert.NotEqual(t, msgs[i-1].Role, msgs[i].Role, "roles must alternate at index %d", i)
			}
		})
	}
}

// A turn's second speaker sees the first speaker's reply as the newest
// message. The fold must keep that reply in the conversation, after the
// student's message, so the persona responds to it rather than continuing it.
func TestEnsureAlternationSecondSpeakerShape(t *testing.T) {
	system, msgs, err := ensureAlternation([]llm.CompletionMessage{
		llm.NewSystemMessage("You are the Director of IT Security."),
		llm.NewUserMessage("hi everyone"),
		llm.NewAssistantMessage("**Head Librarian:** Patrons must be able to borrow e-books."),
	})
	require.NoError(t, err)
	assert.Equal(t, "You are the Director of IT Security.", system)
	require.Len(t, msgs, 1)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)

	content := msgs[0].Content
	assert.Contains(t, content, "hi everyone")
	assert.Contains(t, content, "**Head Librarian:** Patrons must be able to borrow e-books.")
	assert.Less(t, strings.Index(content, "hi everyone"), strings.Index(content, "**Head Librarian:**"),
		"student message must precede the peer reply")
}
