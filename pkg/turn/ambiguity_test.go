package turn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reclassroom/pkg/llm"
	"reclassroom/pkg/scenario"
	"reclassroom/pkg/templates"
)

func newTestScorer(t *testing.T, mock *llm.MockClient) *Scorer {
	t.Helper()
	renderer, err := templates.NewRenderer()
	require.NoError(t, err)
	return NewScorer(mock, renderer)
}

func TestScoreRecordsResult(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"score": 3, "reason": "Specific and answerable."}`},
	}, nil)
	scorer := newTestScorer(t, mock)

	var state scenario.AmbiguityState
	scorer.Score(context.Background(), "What is the maximum budget for authentication?", &state)

	require.NotNil(t, state.CurrentScore)
	assert.Equal(t, 3, *state.CurrentScore)
	assert.Equal(t, "Specific and answerable.", state.Reason)
	assert.Equal(t, []int{3}, state.History)
}

func TestScoreFailsOpenOnServiceError(t *testing.T) {
	mock := llm.NewMockClient(nil, []error{llm.NewError(llm.ErrorTypeRateLimit, "throttled")})
	scorer := newTestScorer(t, mock)

	var state scenario.AmbiguityState
	scorer.Score(context.Background(), "What do you want?", &state)

	require.NotNil(t, state.CurrentScore)
	assert.Equal(t, 10, *state.CurrentScore)
	assert.NotEmpty(t, state.Reason)
	assert.Equal(t, []int{10}, state.History, "history gains exactly one entry equal to 10")
}

func TestScoreFailsOpenOnMalformedJSON(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "the question seems fairly clear to me"},
	}, nil)
	scorer := newTestScorer(t, mock)

	var state scenario.AmbiguityState
	scorer.Score(context.Background(), "Is the system good?", &state)

	require.NotNil(t, state.CurrentScore)
	assert.Equal(t, 10, *state.CurrentScore)
}

func TestScoreClampsOutOfRange(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"score": 14, "reason": "off the scale"}`},
	}, nil)
	scorer := newTestScorer(t, mock)

	var state scenario.AmbiguityState
	scorer.Score(context.Background(), "hm?", &state)

	require.NotNil(t, state.CurrentScore)
	assert.Equal(t, 10, *state.CurrentScore)
}

func TestScoreHistoryAppends(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"score": 6, "reason": "broad"}`},
		{Content: `{"score": 2, "reason": "precise"}`},
	}, nil)
	scorer := newTestScorer(t, mock)

	var state scenario.AmbiguityState
	scorer.Score(context.Background(), "Tell me about the user interface.", &state)
	scorer.Score(context.Background(), "Which WCAG level must the UI meet?", &state)

	assert.Equal(t, []int{6, 2}, state.History)
	require.NotNil(t, state.CurrentScore)
	assert.Equal(t, 2, *state.CurrentScore)
	assert.Equal(t, "precise", state.Reason)
}
