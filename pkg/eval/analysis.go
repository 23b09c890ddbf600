// Package eval provides the workbench requirements analysis and the final
// submission evaluation.
package eval

import (
	"context"
	"fmt"
	"strings"

	"reclassroom/pkg/llm"
	"reclassroom/pkg/logx"
	"reclassroom/pkg/scenario"
	"reclassroom/pkg/templates"
)

// Analyzer performs on-demand conflict analysis of the workbench requirement
// list, with source attribution, independent of the conversation loop.
type Analyzer struct {
	client   llm.Client
	renderer *templates.Renderer
	logger   *logx.Logger
}

// NewAnalyzer creates a requirements analyzer.
func NewAnalyzer(client llm.Client) (*Analyzer, error) {
	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis renderer: %w", err)
	}
	return &Analyzer{
		client:   client,
		renderer: renderer,
		logger:   logx.NewLogger("analysis"),
	}, nil
}

// AnalyzeRequirements classifies every requirement as Agreed or Disputed
// against the stakeholder set and project context. Unlike the in-turn
// conflict check this is caller-initiated, so failures are returned.
func (a *Analyzer) AnalyzeRequirements(
	ctx context.Context,
	requirements []scenario.ElicitedRequirement,
	stakeholders []scenario.StakeholderConfig,
	projectContext string,
) (scenario.NegotiationStatus, error) {
	if len(requirements) == 0 {
		return scenario.NegotiationStatus{}, nil
	}

	lines := make([]string, len(requirements))
	reqTexts := make([]string, len(requirements))
	for i := range requirements {
		lines[i] = fmt.Sprintf("%s (Source: %s)", requirements[i].Requirement, requirements[i].Source)
		reqTexts[i] = requirements[i].Requirement
	}

	roles := make([]string, len(stakeholders))
	for i := range stakeholders {
		roles[i] = stakeholders[i].Role
	}

	prompt, err := a.renderer.Render(templates.RequirementsAnalysisTemplate, &templates.TemplateData{
		ProjectContext:   projectContext,
		StakeholderList:  strings.Join(roles, ", "),
		RequirementLines: lines,
	})
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Complete(ctx, llm.CompletionRequest{
		Messages:       []llm.CompletionMessage{llm.NewSystemMessage(prompt)},
		ResponseFormat: llm.FormatJSON,
		MaxTokens:      llm.DefaultMaxTokens,
		Temperature:    llm.TemperatureDeterministic,
	})
	if err != nil {
		return nil, fmt.Errorf("requirements analysis failed: %w", err)
	}

	var raw map[string]scenario.RequirementStanding
	if err := llm.DecodeJSON(resp.Content, &raw); err != nil {
		return nil, fmt.Errorf("requirements analysis returned malformed JSON: %w", err)
	}

	// Force the key set to the analyzed requirements.
	status := make(scenario.NegotiationStatus, len(reqTexts))
	for _, req := range reqTexts {
		standing, ok := raw[req]
		if !ok {
			standing = scenario.RequirementStanding{Status: scenario.StatusAgreed}
		}
		status[req] = standing
	}
	return status, nil
}
