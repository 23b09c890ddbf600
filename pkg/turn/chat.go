package turn

import (
	"fmt"

	"reclassroom/pkg/llm"
	"reclassroom/pkg/scenario"
	"reclassroom/pkg/tokens"
)

// buildChatMessages converts the dialogue history into a completion message
// list from the persona's perspective: student messages map to the user role,
// everything else maps to the assistant role with the original speaker name
// prefixed so multi-party turns stay attributable. History is windowed from
// the newest message backwards to fit tokenBudget; the newest message is
// always included.
func buildChatMessages(systemPrompt string, history []scenario.DialogueMessage, counter *tokens.Counter, tokenBudget int) []llm.CompletionMessage {
	converted := make([]llm.CompletionMessage, 0, len(history))
	for i := range history {
		msg := &history[i]
		if msg.Role == scenario.RoleStudent {
			converted = append(converted, llm.NewUserMessage(msg.Content))
		} else {
			converted = append(converted, llm.NewAssistantMessage(fmt.Sprintf("**%s:** %s", msg.Role, msg.Content)))
		}
	}

	start := 0
	if tokenBudget > 0 && len(converted) > 1 {
		remaining := tokenBudget
		start = len(converted)
		for i := len(converted) - 1; i >= 0; i-- {
			cost := counter.Count(converted[i].Content)
			if remaining-cost < 0 && start < len(converted) {
				break
			}
			remaining -= cost
			start = i
		}
	}

	out := make([]llm.CompletionMessage, 0, len(converted)-start+1)
	out = append(out, llm.NewSystemMessage(systemPrompt))
	out = append(out, converted[start:]...)
	return out
}
