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

func newTestRouter(t *testing.T, mock *llm.MockClient) *Router {
	t.Helper()
	renderer, err := templates.NewRenderer()
	require.NoError(t, err)
	return NewRouter(mock, renderer)
}

func studentSays(content string) []scenario.DialogueMessage {
	return []scenario.DialogueMessage{{Role: scenario.RoleStudent, Content: content}}
}

func TestRouteBroadcastBypassesCompletion(t *testing.T) {
	mock := llm.NewMockClient(nil, nil)
	router := newTestRouter(t, mock)
	roles := []string{"Librarian", "IT Security"}

	decision := router.Route(context.Background(), studentSays("hi everyone"), roles)

	assert.Equal(t, []string{"Librarian", "IT Security"}, decision.Roster)
	assert.False(t, decision.IsConcluding)
	assert.Equal(t, 0, mock.CallCount(), "broadcast greetings must not call the completion service")
}

func TestRouteBareGreeting(t *testing.T) {
	mock := llm.NewMockClient(nil, nil)
	router := newTestRouter(t, mock)
	roles := []string{"Librarian"}

	for _, msg := range []string{"hi", "Hello", "  hey  ", "what do you all think?"} {
		decision := router.Route(context.Background(), studentSays(msg), roles)
		assert.Equal(t, roles, decision.Roster, "message %q", msg)
		assert.Equal(t, 0, mock.CallCount())
	}
}

func TestRouteGreetingSubstringNotBare(t *testing.T) {
	// "hi" as a substring of a real question must not broadcast.
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"roster": "Librarian", "is_concluding": false}`},
	}, nil)
	router := newTestRouter(t, mock)

	decision := router.Route(context.Background(), studentSays("which archive formats do you support?"), []string{"Librarian"})
	assert.Equal(t, []string{"Librarian"}, decision.Roster)
	assert.Equal(t, 1, mock.CallCount())
}

func TestRouteFuzzyMatchCommaString(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"roster": "IT Security, Librarian", "is_concluding": false}`},
	}, nil)
	router := newTestRouter(t, mock)
	roles := []string{"Head Librarian", "Director of IT Security"}

	decision := router.Route(context.Background(), studentSays("what do security and the library need?"), roles)

	assert.Equal(t, []string{"Director of IT Security", "Head Librarian"}, decision.Roster)
	assert.False(t, decision.IsConcluding)
}

func TestRouteListRoster(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"roster": ["Head Librarian", "head librarian"], "is_concluding": true}`},
	}, nil)
	router := newTestRouter(t, mock)

	decision := router.Route(context.Background(), studentSays("thanks, librarian, I think we're done"), []string{"Head Librarian"})

	assert.Equal(t, []string{"Head Librarian"}, decision.Roster, "duplicates collapse in first-seen order")
	assert.True(t, decision.IsConcluding)
}

func TestRouteNoMatchEndsTurn(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"roster": "Budget Office", "is_concluding": false}`},
	}, nil)
	router := newTestRouter(t, mock)

	decision := router.Route(context.Background(), studentSays("what does the budget office say?"),
		[]string{"Head Librarian", "Director of IT Security"})

	assert.Equal(t, []string{scenario.RosterEnd}, decision.Roster)
	assert.True(t, decision.IsConcluding)
}

func TestRouteServiceFailureEndsTurn(t *testing.T) {
	mock := llm.NewMockClient(nil, []error{llm.NewError(llm.ErrorTypeTransient, "down")})
	router := newTestRouter(t, mock)

	decision := router.Route(context.Background(), studentSays("tell me about uptime requirements"), []string{"Head Librarian"})

	assert.Equal(t, []string{scenario.RosterEnd}, decision.Roster)
	assert.True(t, decision.IsConcluding)
}

func TestRouteMalformedJSONEndsTurn(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "I think the Librarian should answer this one."},
	}, nil)
	router := newTestRouter(t, mock)

	decision := router.Route(context.Background(), studentSays("tell me about archival policy"), []string{"Head Librarian"})

	assert.Equal(t, []string{scenario.RosterEnd}, decision.Roster)
	assert.True(t, decision.IsConcluding)
}

func TestRouteEmptyRosterValueEndsTurn(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"roster": "", "is_concluding": false}`},
	}, nil)
	router := newTestRouter(t, mock)

	decision := router.Route(context.Background(), studentSays("anything else?"), []string{"Head Librarian"})

	assert.Equal(t, []string{scenario.RosterEnd}, decision.Roster)
}

func TestMatchRole(t *testing.T) {
	roles := []string{"Head Librarian", "Director of IT Security"}

	m := MatchRole("IT Security", roles)
	assert.Equal(t, MatchExact, m.Kind)
	assert.Equal(t, []string{"Director of IT Security"}, m.Roles)

	// Candidate longer than the official role also matches.
	m = MatchRole("the head librarian of the campus", roles)
	assert.Equal(t, MatchExact, m.Kind)
	assert.Equal(t, []string{"Head Librarian"}, m.Roles)

	m = MatchRole("Budget Office", roles)
	assert.Equal(t, MatchNone, m.Kind)

	m = MatchRole("   ", roles)
	assert.Equal(t, MatchNone, m.Kind)
}

func TestMatchRoleAmbiguous(t *testing.T) {
	roles := []string{"Head Librarian", "Assistant Librarian"}

	m := MatchRole("Librarian", roles)
	assert.Equal(t, MatchAmbiguous, m.Kind)
	assert.Equal(t, roles, m.Roles)
}

func TestRouteSkipsAmbiguousCandidates(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"roster": "Librarian, Security", "is_concluding": false}`},
	}, nil)
	router := newTestRouter(t, mock)
	roles := []string{"Head Librarian", "Assistant Librarian", "Director of IT Security"}

	decision := router.Route(context.Background(), studentSays("librarian and security, thoughts?"), roles)

	// "Librarian" is ambiguous and dropped; "Security" resolves uniquely.
	assert.Equal(t, []string{"Director of IT Security"}, decision.Roster)
}

func TestNormalizeRoster(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, normalizeRoster("A, B"))
	assert.Equal(t, []string{"A", "B"}, normalizeRoster([]any{"A", " B "}))
	assert.Nil(t, normalizeRoster(nil))
	assert.Nil(t, normalizeRoster(42.0))
	assert.Nil(t, normalizeRoster("  ,  "))
}
