package turn

import (
	"context"
	"fmt"
	"strings"

	"reclassroom/pkg/llm"
	"reclassroom/pkg/logx"
	"reclassroom/pkg/scenario"
	"reclassroom/pkg/templates"
)

// historyWindow is how many trailing dialogue messages the router sees.
const historyWindow = 5

// broadcastPhrases trigger the rule-based path: the whole stakeholder list
// responds and no completion call is made.
var broadcastPhrases = []string{
	"hi all", "hello all", "hi everyone", "hello everyone", "hey everyone",
	"how are you", "what do you all think", "your initial thoughts",
}

// bareGreetings must match the whole message, not a substring.
var bareGreetings = []string{"hi", "hello", "hey"}

// Decision is the router's output: who speaks this turn, in order, and
// whether the conversation appears to be wrapping up. IsConcluding is
// informational; termination is driven by the roster alone.
type Decision struct {
	Roster       []string
	IsConcluding bool
}

// endTurn is the fail-closed decision: mis-routing to the wrong persona is
// worse than ending the turn early.
func endTurn() Decision {
	return Decision{Roster: []string{scenario.RosterEnd}, IsConcluding: true}
}

// Router decides which stakeholder(s) must speak this turn. Broadcast
// greetings take a rule-based path; everything else goes through the
// completion service with fuzzy role matching on the reply.
type Router struct {
	client   llm.Client
	renderer *templates.Renderer
	logger   *logx.Logger
}

// NewRouter creates a turn router.
func NewRouter(client llm.Client, renderer *templates.Renderer) *Router {
	return &Router{
		client:   client,
		renderer: renderer,
		logger:   logx.NewLogger("router"),
	}
}

// Route determines the speaker roster from the dialogue history. Called
// exactly once per turn.
func (r *Router) Route(ctx context.Context, history []scenario.DialogueMessage, roles []string) Decision {
	if len(history) == 0 {
		return endTurn()
	}

	studentMessage := strings.ToLower(strings.TrimSpace(history[len(history)-1].Content))

	if isBroadcast(studentMessage) {
		r.logger.Debug("broadcast message, full roster responds")
		return Decision{Roster: append([]string{}, roles...), IsConcluding: false}
	}

	decision, err := r.routeViaCompletion(ctx, history, roles)
	if err != nil {
		r.logger.Warn("routing failed, ending turn: %v", err)
		return endTurn()
	}
	return decision
}

func isBroadcast(normalized string) bool {
	for _, phrase := range broadcastPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	for _, greeting := range bareGreetings {
		if normalized == greeting {
			return true
		}
	}
	return false
}

func (r *Router) routeViaCompletion(ctx context.Context, history []scenario.DialogueMessage, roles []string) (Decision, error) {
	window := history
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}
	var lines []string
	for i := range window {
		lines = append(lines, fmt.Sprintf("- %s: %s", window[i].Role, window[i].Content))
	}

	prompt, err := r.renderer.Render(templates.RoutingTemplate, &templates.TemplateData{
		Roles:   roles,
		History: strings.Join(lines, "\n"),
	})
	if err != nil {
		return Decision{}, err
	}

	resp, err := r.client.Complete(ctx, llm.CompletionRequest{
		Messages:       []llm.CompletionMessage{llm.NewSystemMessage(prompt)},
		ResponseFormat: llm.FormatJSON,
		MaxTokens:      llm.DefaultMaxTokens,
		Temperature:    llm.TemperatureDeterministic,
	})
	if err != nil {
		return Decision{}, err
	}

	var reply struct {
		Roster       any  `json:"roster"`
		IsConcluding bool `json:"is_concluding"`
	}
	if err := llm.DecodeJSON(resp.Content, &reply); err != nil {
		return Decision{}, err
	}

	candidates := normalizeRoster(reply.Roster)
	if len(candidates) == 0 {
		return Decision{}, fmt.Errorf("routing reply named no candidates")
	}

	roster := r.validateCandidates(candidates, roles)
	if len(roster) == 0 {
		return Decision{}, fmt.Errorf("no routing candidate resolved to an official role")
	}
	return Decision{Roster: roster, IsConcluding: reply.IsConcluding}, nil
}

// normalizeRoster flattens the service's roster value, which may arrive as a
// comma-joined string or an array, into candidate strings.
func normalizeRoster(value any) []string {
	var raw []string
	switch v := value.(type) {
	case string:
		raw = strings.Split(v, ",")
	case []any:
		for _, item := range v {
			switch s := item.(type) {
			case string:
				raw = append(raw, s)
			default:
				raw = append(raw, fmt.Sprint(item))
			}
		}
	default:
		return nil
	}

	var candidates []string
	for _, c := range raw {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			candidates = append(candidates, trimmed)
		}
	}
	return candidates
}

// validateCandidates resolves each candidate to an official role, dropping
// unresolvable and ambiguous ones, deduplicated in first-seen order.
func (r *Router) validateCandidates(candidates, roles []string) []string {
	var roster []string
	seen := make(map[string]bool, len(roles))
	for _, candidate := range candidates {
		match := MatchRole(candidate, roles)
		switch match.Kind {
		case MatchExact:
			if !seen[match.Roles[0]] {
				seen[match.Roles[0]] = true
				roster = append(roster, match.Roles[0])
			}
		case MatchAmbiguous:
			r.logger.Warn("candidate %q matches multiple roles %v, skipping", candidate, match.Roles)
		case MatchNone:
			r.logger.Debug("candidate %q matches no role", candidate)
		}
	}
	return roster
}

// MatchKind classifies the outcome of resolving a candidate role name.
type MatchKind int

const (
	// MatchNone means no official role matched the candidate.
	MatchNone MatchKind = iota
	// MatchExact means exactly one official role matched.
	MatchExact
	// MatchAmbiguous means more than one official role matched.
	MatchAmbiguous
)

// Match is the typed result of fuzzy role resolution.
type Match struct {
	Kind  MatchKind
	Roles []string // Matched official roles, first-seen order
}

// MatchRole resolves a candidate against the official role list with a
// case-insensitive substring test in either direction, so a partial or
// informal name ("IT Security") finds the one official role containing it.
// Ties surface as MatchAmbiguous rather than silently picking the first hit.
func MatchRole(candidate string, roles []string) Match {
	needle := strings.ToLower(strings.TrimSpace(candidate))
	if needle == "" {
		return Match{Kind: MatchNone}
	}

	var matched []string
	for _, role := range roles {
		haystack := strings.ToLower(role)
		if strings.Contains(haystack, needle) || strings.Contains(needle, haystack) {
			matched = append(matched, role)
		}
	}

	switch len(matched) {
	case 0:
		return Match{Kind: MatchNone}
	case 1:
		return Match{Kind: MatchExact, Roles: matched}
	default:
		return Match{Kind: MatchAmbiguous, Roles: matched}
	}
}
