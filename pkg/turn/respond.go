package turn

import (
	"context"
	"fmt"

	"reclassroom/pkg/llm"
	"reclassroom/pkg/logx"
	"reclassroom/pkg/persona"
	"reclassroom/pkg/scenario"
	"reclassroom/pkg/tokens"
)

// Responder generates one persona reply per call, for the speaker at the head
// of the roster. The head is popped exactly once whatever the outcome; that
// pop is the loop's liveness guarantee.
type Responder struct {
	client        llm.Client
	prompts       *persona.Builder
	counter       *tokens.Counter
	historyBudget int
	logger        *logx.Logger
}

// NewResponder creates a response generator. historyBudget caps the tokens of
// dialogue history sent with each persona call; zero disables windowing.
func NewResponder(client llm.Client, prompts *persona.Builder, counter *tokens.Counter, historyBudget int) *Responder {
	return &Responder{
		client:        client,
		prompts:       prompts,
		counter:       counter,
		historyBudget: historyBudget,
		logger:        logx.NewLogger("responder"),
	}
}

// Respond produces a reply from the roster's head speaker, appending either
// the persona's message or a system-role error notice to the dialogue
// history, and shortens the roster by one.
func (g *Responder) Respond(ctx context.Context, tc *Context) {
	if len(tc.Roster) == 0 {
		tc.DialogueHistory = append(tc.DialogueHistory, scenario.DialogueMessage{
			Role:    scenario.RoleSystem,
			Content: "System Error: response generation invoked with an empty roster.",
		})
		return
	}

	speaker := tc.Roster[0]
	tc.Roster = tc.Roster[1:]

	config := tc.FindStakeholder(speaker)
	if config == nil {
		g.logger.Error("no stakeholder configuration for %q", speaker)
		tc.DialogueHistory = append(tc.DialogueHistory, scenario.DialogueMessage{
			Role:    scenario.RoleSystem,
			Content: fmt.Sprintf("System Error: Could not find configuration for stakeholder '%s'.", speaker),
		})
		return
	}

	systemPrompt, err := g.prompts.SystemPrompt(
		config,
		tc.Stakeholders,
		tc.ProjectContext,
		tc.EvaluationCriteria.KeyRequirements,
		tc.ResponseStyle,
	)
	if err != nil {
		g.logger.Error("prompt construction failed for %q: %v", speaker, err)
		tc.DialogueHistory = append(tc.DialogueHistory, scenario.DialogueMessage{
			Role:    scenario.RoleSystem,
			Content: fmt.Sprintf("Error for %s: %v", speaker, err),
		})
		return
	}

	messages := buildChatMessages(systemPrompt, tc.DialogueHistory, g.counter, g.historyBudget)

	resp, err := g.client.Complete(ctx, llm.CompletionRequest{
		Messages:       messages,
		ResponseFormat: llm.FormatText,
		MaxTokens:      llm.DefaultMaxTokens,
		Temperature:    llm.TemperaturePersona,
	})
	if err != nil {
		g.logger.Warn("completion failed for %q: %v", speaker, err)
		tc.DialogueHistory = append(tc.DialogueHistory, scenario.DialogueMessage{
			Role:    scenario.RoleSystem,
			Content: fmt.Sprintf("Error for %s: %v", speaker, err),
		})
		return
	}

	tc.DialogueHistory = append(tc.DialogueHistory, scenario.DialogueMessage{
		Role:    speaker,
		Content: resp.Content,
	})
}
