package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"reclassroom/pkg/llm"
	"reclassroom/pkg/logx"
	"reclassroom/pkg/persistence"
	"reclassroom/pkg/scenario"
	"reclassroom/pkg/templates"
)

// Assessment is one scored criterion of the evaluation report.
type Assessment struct {
	Score    int    `json:"score"` // 1-5
	Feedback string `json:"feedback"`
}

// Report is the structured evaluation of a student's final submission.
type Report struct {
	Coverage               Assessment `json:"coverage_assessment"`
	ConflictIdentification Assessment `json:"conflict_identification_assessment"`
	SolutionValidity       Assessment `json:"solution_validity_assessment"`
	OverallFeedback        string     `json:"overall_feedback"`
}

// evaluationTemperature trades a little determinism for more natural
// feedback prose.
const evaluationTemperature = 0.2

// Evaluator grades a submitted session against the scenario's answer key.
type Evaluator struct {
	client   llm.Client
	renderer *templates.Renderer
	logger   *logx.Logger
}

// NewEvaluator creates a submission evaluator.
func NewEvaluator(client llm.Client) (*Evaluator, error) {
	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluation renderer: %w", err)
	}
	return &Evaluator{
		client:   client,
		renderer: renderer,
		logger:   logx.NewLogger("evaluation"),
	}, nil
}

// EvaluateSubmission scores the final specification and conflict notes
// against the instructor's key requirements and core conflict, using the full
// transcript as evidence.
func (e *Evaluator) EvaluateSubmission(
	ctx context.Context,
	session *persistence.SessionRecord,
	sc *scenario.Scenario,
	transcript []persistence.InteractionRecord,
) (*Report, error) {
	if session.FinalSpecification == nil {
		return nil, fmt.Errorf("session %s has no final specification to evaluate", session.ID)
	}

	studentReqs, err := json.MarshalIndent(session.FinalSpecification.Requirements, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal student requirements: %w", err)
	}

	var lines []string
	for i := range transcript {
		lines = append(lines, fmt.Sprintf("- %s: %s", transcript[i].Role, transcript[i].Content))
	}

	prompt, err := e.renderer.Render(templates.EvaluationTemplate, &templates.TemplateData{
		KeyRequirements:     sc.EvaluationCriteria.KeyRequirements,
		CoreConflict:        sc.EvaluationCriteria.CoreConflict,
		StudentRequirements: string(studentReqs),
		StudentNotes:        session.FinalSpecification.ConflictResolutionNotes,
		Transcript:          strings.Join(lines, "\n"),
	})
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Complete(ctx, llm.CompletionRequest{
		Messages:       []llm.CompletionMessage{llm.NewSystemMessage(prompt)},
		ResponseFormat: llm.FormatJSON,
		MaxTokens:      llm.DefaultMaxTokens,
		Temperature:    evaluationTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	var report Report
	if err := llm.DecodeJSON(resp.Content, &report); err != nil {
		return nil, fmt.Errorf("evaluation returned malformed JSON: %w", err)
	}

	for _, assessment := range []*Assessment{&report.Coverage, &report.ConflictIdentification, &report.SolutionValidity} {
		if assessment.Score < 1 {
			assessment.Score = 1
		}
		if assessment.Score > 5 {
			assessment.Score = 5
		}
	}

	e.logger.Info("evaluated session %s: coverage=%d conflict=%d solution=%d",
		session.ID, report.Coverage.Score, report.ConflictIdentification.Score, report.SolutionValidity.Score)
	return &report, nil
}
