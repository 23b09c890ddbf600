package turn

import (
	"context"

	"reclassroom/pkg/llm"
	"reclassroom/pkg/logx"
	"reclassroom/pkg/scenario"
	"reclassroom/pkg/templates"
)

// Checker re-assesses the elicited requirement set for internal conflicts.
// Failures degrade to the previous negotiation status, never to a cleared
// one, so prior learner-visible feedback survives a flaky service call.
type Checker struct {
	client   llm.Client
	renderer *templates.Renderer
	logger   *logx.Logger
}

// NewChecker creates a conflict checker.
func NewChecker(client llm.Client, renderer *templates.Renderer) *Checker {
	return &Checker{
		client:   client,
		renderer: renderer,
		logger:   logx.NewLogger("conflict"),
	}
}

// Reason instructions injected into the analysis prompt per scaffolding tier.
const (
	reasonVerbose    = `For "Disputed" status, provide a brief, objective explanation of why these requirements conflict with each other.`
	reasonSuppressed = `For "Disputed" status, the reason must be an empty string "".`
)

// Check classifies every requirement as Agreed or Disputed. The returned
// mapping's keys are exactly the requirement strings in requirements. prev is
// returned unchanged when the policy skips checking or the service fails.
func (c *Checker) Check(ctx context.Context, requirements []scenario.ElicitedRequirement, prev scenario.NegotiationStatus, policy scenario.Policy) scenario.NegotiationStatus {
	if policy.SkipConflictCheck {
		return prev
	}
	if len(requirements) == 0 {
		return scenario.NegotiationStatus{}
	}

	reqTexts := make([]string, len(requirements))
	for i := range requirements {
		reqTexts[i] = requirements[i].Requirement
	}

	reasonInstruction := reasonVerbose
	if policy.SuppressReasons {
		reasonInstruction = reasonSuppressed
	}

	prompt, err := c.renderer.Render(templates.ConflictCheckTemplate, &templates.TemplateData{
		RequirementLines:  reqTexts,
		ReasonInstruction: reasonInstruction,
	})
	if err != nil {
		c.logger.Error("conflict prompt construction failed: %v", err)
		return prev
	}

	resp, err := c.client.Complete(ctx, llm.CompletionRequest{
		Messages:       []llm.CompletionMessage{llm.NewSystemMessage(prompt)},
		ResponseFormat: llm.FormatJSON,
		MaxTokens:      llm.DefaultMaxTokens,
		Temperature:    llm.TemperatureDeterministic,
	})
	if err != nil {
		c.logger.Warn("conflict check failed, keeping previous status: %v", err)
		return prev
	}

	var raw map[string]scenario.RequirementStanding
	if err := llm.DecodeJSON(resp.Content, &raw); err != nil {
		c.logger.Warn("conflict check returned malformed JSON, keeping previous status: %v", err)
		return prev
	}

	return rebuildStatus(reqTexts, raw, prev, policy)
}

// rebuildStatus produces the replacement negotiation status. The key set is
// forced to exactly the current requirement strings: extra keys from the
// service are dropped, omitted requirements keep their previous standing (or
// default to Agreed), and reasons are blanked when the tier suppresses them.
func rebuildStatus(reqTexts []string, raw map[string]scenario.RequirementStanding, prev scenario.NegotiationStatus, policy scenario.Policy) scenario.NegotiationStatus {
	status := make(scenario.NegotiationStatus, len(reqTexts))
	for _, req := range reqTexts {
		standing, ok := raw[req]
		if !ok {
			if previous, had := prev[req]; had {
				standing = previous
			} else {
				standing = scenario.RequirementStanding{Status: scenario.StatusAgreed}
			}
		}
		switch standing.Status {
		case scenario.StatusAgreed, scenario.StatusDisputed, scenario.StatusResolved:
		default:
			standing.Status = scenario.StatusAgreed
			standing.Reason = ""
		}
		if policy.SuppressReasons {
			standing.Reason = ""
		}
		status[req] = standing
	}
	return status
}
