package turn

import (
	"context"
	"fmt"

	"reclassroom/pkg/llm"
	"reclassroom/pkg/logx"
	"reclassroom/pkg/scenario"
	"reclassroom/pkg/templates"
)

// Scorer rates the clarity of the student's latest question on a 1-10 scale
// (lower is clearer). Scoring failures never block the turn: the scorer fails
// open toward "treat as unclear" and absorbs all errors.
type Scorer struct {
	client   llm.Client
	renderer *templates.Renderer
	logger   *logx.Logger
}

// NewScorer creates an ambiguity scorer.
func NewScorer(client llm.Client, renderer *templates.Renderer) *Scorer {
	return &Scorer{
		client:   client,
		renderer: renderer,
		logger:   logx.NewLogger("ambiguity"),
	}
}

// maxAmbiguity is the most conservative score, used when scoring fails.
const maxAmbiguity = 10

// Score rates studentMessage and records the result in state. The current
// score and reason are overwritten and history gains exactly one entry.
func (s *Scorer) Score(ctx context.Context, studentMessage string, state *scenario.AmbiguityState) {
	score, reason, err := s.score(ctx, studentMessage)
	if err != nil {
		s.logger.Warn("ambiguity scoring failed, recording maximum: %v", err)
		state.Record(maxAmbiguity, fmt.Sprintf("An error occurred during analysis: %v", err))
		return
	}
	state.Record(score, reason)
}

func (s *Scorer) score(ctx context.Context, studentMessage string) (int, string, error) {
	prompt, err := s.renderer.Render(templates.AmbiguityScoringTemplate, &templates.TemplateData{
		StudentMessage: studentMessage,
	})
	if err != nil {
		return 0, "", err
	}

	resp, err := s.client.Complete(ctx, llm.CompletionRequest{
		Messages:       []llm.CompletionMessage{llm.NewSystemMessage(prompt)},
		ResponseFormat: llm.FormatJSON,
		MaxTokens:      llm.DefaultMaxTokens,
		Temperature:    llm.TemperatureDeterministic,
	})
	if err != nil {
		return 0, "", err
	}

	var result struct {
		Score  int    `json:"score"`
		Reason string `json:"reason"`
	}
	if err := llm.DecodeJSON(resp.Content, &result); err != nil {
		return 0, "", err
	}

	// Out-of-range scores collapse to the conservative end.
	if result.Score < 1 || result.Score > maxAmbiguity {
		s.logger.Debug("out-of-range ambiguity score %d, clamping", result.Score)
		result.Score = maxAmbiguity
	}
	if result.Reason == "" {
		result.Reason = "No reason provided."
	}
	return result.Score, result.Reason, nil
}
