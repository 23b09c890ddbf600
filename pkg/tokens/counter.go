// Package tokens provides tiktoken-based token counting for history windowing.
package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Counter provides accurate token counting for completion payloads.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter creates a token counter. All supported providers are approximated
// with the GPT-4 encoding, which is close enough for window budgeting.
func NewCounter() (*Counter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the number of tokens in text. Falls back to a character-based
// estimate (4 chars per token) when the codec cannot encode the input.
func (c *Counter) Count(text string) int {
	if c == nil || c.codec == nil {
		return len(text) / 4
	}
	count, err := c.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}
