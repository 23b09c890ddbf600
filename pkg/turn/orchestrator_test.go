package turn

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reclassroom/pkg/llm"
	"reclassroom/pkg/scenario"
)

func newTestOrchestrator(t *testing.T, mock *llm.MockClient) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(mock, 0, nil)
	require.NoError(t, err)
	return o
}

func routingJSON(roles ...string) llm.CompletionResponse {
	out := `{"roster": [`
	for i, r := range roles {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%q", r)
	}
	out += `], "is_concluding": false}`
	return llm.CompletionResponse{Content: out}
}

func TestRunTurnEasyFullFlow(t *testing.T) {
	// Easy tier, two-speaker roster: ambiguity, routing, then per speaker a
	// reply and a conflict check. Five completion calls in total.
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"score": 4, "reason": "somewhat broad"}`},
		routingJSON("Head Librarian", "Director of IT Security"),
		{Content: "The library needs evening hours."},
		{Content: `{"The portal must stay open late.": {"status": "Agreed", "reason": ""}}`},
		{Content: "Security insists on SSO."},
		{Content: `{"The portal must stay open late.": {"status": "Agreed", "reason": ""}}`},
	}, nil)
	o := newTestOrchestrator(t, mock)

	tc := newTestContext()
	tc.DialogueHistory = []scenario.DialogueMessage{
		{Role: scenario.RoleStudent, Content: "What do the library and IT security need?"},
	}
	tc.Requirements = []scenario.ElicitedRequirement{{Requirement: "The portal must stay open late.", Source: "Head Librarian"}}

	result, err := o.RunTurn(context.Background(), tc)
	require.NoError(t, err)

	assert.Equal(t, 6, mock.CallCount())
	assert.Equal(t, 2, result.AgentTurns)
	assert.Empty(t, result.Roster)
	require.NotNil(t, result.Ambiguity.CurrentScore)
	assert.Equal(t, 4, *result.Ambiguity.CurrentScore)
	assert.Len(t, result.DialogueHistory, 3)
	assert.Equal(t, "Head Librarian", result.DialogueHistory[1].Role)
	assert.Equal(t, "Director of IT Security", result.DialogueHistory[2].Role)
	assert.Contains(t, result.NegotiationStatus, "The portal must stay open late.")
}

func TestRunTurnExpertSkipsScaffolding(t *testing.T) {
	// Hard tier: no ambiguity call, no conflict calls. Routing plus one reply
	// per speaker only.
	mock := llm.NewMockClient([]llm.CompletionResponse{
		routingJSON("Head Librarian"),
		{Content: "We archive everything for seven years."},
	}, nil)
	o := newTestOrchestrator(t, mock)

	tc := newTestContext()
	tc.Difficulty = scenario.DifficultyHard
	tc.DialogueHistory = []scenario.DialogueMessage{
		{Role: scenario.RoleStudent, Content: "Librarian, how long do you keep records?"},
	}
	prev := scenario.NegotiationStatus{"old": {Status: scenario.StatusDisputed, Reason: "r"}}
	tc.NegotiationStatus = prev.Clone()

	result, err := o.RunTurn(context.Background(), tc)
	require.NoError(t, err)

	assert.Equal(t, 2, mock.CallCount())
	assert.Equal(t, 1, result.AgentTurns)
	assert.Nil(t, result.Ambiguity.CurrentScore, "expert mode never scores ambiguity")
	assert.Empty(t, result.Ambiguity.History)
	assert.Equal(t, prev, result.NegotiationStatus, "negotiation status untouched in expert mode")
}

func TestRunTurnBroadcastZeroRoutingCalls(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"score": 8, "reason": "a bare greeting elicits nothing"}`},
		{Content: "Hello!"},
		{Content: `{}`},
		{Content: "Hi there."},
		{Content: `{}`},
	}, nil)
	o := newTestOrchestrator(t, mock)

	tc := newTestContext()
	tc.DialogueHistory = []scenario.DialogueMessage{
		{Role: scenario.RoleStudent, Content: "hi everyone"},
	}
	tc.Requirements = []scenario.ElicitedRequirement{{Requirement: "placeholder", Source: "Head Librarian"}}

	result, err := o.RunTurn(context.Background(), tc)
	require.NoError(t, err)

	// Both stakeholders reply: ambiguity + 2x(reply, conflict), no routing call.
	assert.Equal(t, 5, mock.CallCount())
	assert.Equal(t, 2, result.AgentTurns)
	assert.False(t, result.IsConcluding)
}

func TestRunTurnLiveness(t *testing.T) {
	// Every completion call fails. The turn must still terminate with one
	// system message per rostered speaker.
	var errs []error
	for i := 0; i < 20; i++ {
		errs = append(errs, llm.NewError(llm.ErrorTypeTransient, "down"))
	}
	mock := llm.NewMockClient(nil, errs)
	o := newTestOrchestrator(t, mock)

	tc := newTestContext()
	tc.DialogueHistory = []scenario.DialogueMessage{
		{Role: scenario.RoleStudent, Content: "hi everyone"},
	}

	result, err := o.RunTurn(context.Background(), tc)
	require.NoError(t, err)

	assert.Equal(t, 2, result.AgentTurns, "one agent turn per rostered speaker")
	// Student message plus one system error entry per speaker.
	assert.Len(t, result.DialogueHistory, 3)
	for _, msg := range result.DialogueHistory[1:] {
		assert.Equal(t, scenario.RoleSystem, msg.Role)
	}
}

func TestRunTurnRoutingFailureEndsImmediately(t *testing.T) {
	mock := llm.NewMockClient(nil, []error{
		llm.NewError(llm.ErrorTypeTransient, "down"), // ambiguity
		llm.NewError(llm.ErrorTypeTransient, "down"), // routing
	})
	o := newTestOrchestrator(t, mock)

	tc := newTestContext()
	tc.DialogueHistory = []scenario.DialogueMessage{
		{Role: scenario.RoleStudent, Content: "tell me about capacity"},
	}

	result, err := o.RunTurn(context.Background(), tc)
	require.NoError(t, err)

	assert.Equal(t, 0, result.AgentTurns)
	assert.Equal(t, []string{scenario.RosterEnd}, result.Roster)
	assert.True(t, result.IsConcluding)
	assert.Len(t, result.DialogueHistory, 1, "no speaker, no new messages")
}

func TestRunTurnRosterMonotonicity(t *testing.T) {
	// Mixed success and failure: the roster shrinks by exactly one per agent
	// turn and the orchestrator performs exactly len(roster) agent turns.
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"score": 2, "reason": "clear"}`},
		routingJSON("Head Librarian", "Director of IT Security"),
		{Content: "A reply."},
		{Content: `{}`},
	}, []error{
		nil, nil, nil, nil,
		llm.NewError(llm.ErrorTypeAuth, "bad key"), // second speaker fails
		llm.NewError(llm.ErrorTypeAuth, "bad key"), // its conflict check fails
	})
	o := newTestOrchestrator(t, mock)

	tc := newTestContext()
	tc.DialogueHistory = []scenario.DialogueMessage{
		{Role: scenario.RoleStudent, Content: "library and security, your constraints?"},
	}
	tc.Requirements = []scenario.ElicitedRequirement{{Requirement: "r1", Source: "Head Librarian"}}

	result, err := o.RunTurn(context.Background(), tc)
	require.NoError(t, err)

	assert.Equal(t, 2, result.AgentTurns)
	assert.Empty(t, result.Roster)
}

func TestRunTurnValidatesContext(t *testing.T) {
	mock := llm.NewMockClient(nil, nil)
	o := newTestOrchestrator(t, mock)

	tc := newTestContext()
	tc.DialogueHistory = nil

	_, err := o.RunTurn(context.Background(), tc)
	require.Error(t, err)
	assert.Equal(t, 0, mock.CallCount())
}
