package turn

import (
	"context"
	"fmt"
	"time"

	"reclassroom/pkg/llm"
	"reclassroom/pkg/logx"
	"reclassroom/pkg/metrics"
	"reclassroom/pkg/persona"
	"reclassroom/pkg/scenario"
	"reclassroom/pkg/templates"
	"reclassroom/pkg/tokens"
)

// Orchestrator wires the scorer, router, responder, and checker into one
// per-turn state machine. Each stage absorbs its own completion failures and
// returns a degraded result, so a turn always reaches the terminal state.
type Orchestrator struct {
	scorer    *Scorer
	router    *Router
	responder *Responder
	checker   *Checker
	recorder  *metrics.Recorder
	logger    *logx.Logger
}

// NewOrchestrator creates a turn orchestrator around one completion client.
// historyBudget caps dialogue tokens per persona call (zero disables the
// window); recorder may be nil to disable metrics.
func NewOrchestrator(client llm.Client, historyBudget int, recorder *metrics.Recorder) (*Orchestrator, error) {
	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt renderer: %w", err)
	}
	prompts, err := persona.NewBuilder()
	if err != nil {
		return nil, err
	}
	counter, err := tokens.NewCounter()
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		scorer:    NewScorer(client, renderer),
		router:    NewRouter(client, renderer),
		responder: NewResponder(client, prompts, counter, historyBudget),
		checker:   NewChecker(client, renderer),
		recorder:  recorder,
		logger:    logx.NewLogger("orchestrator"),
	}, nil
}

// RunTurn executes one full turn: score the student's message (unless the
// tier skips it), route once, then let each rostered persona speak with an
// optional conflict re-check after each. The returned roster is consumed.
// Errors surface only for an unrunnable context or a broken transition, never
// for completion-service failures.
func (o *Orchestrator) RunTurn(ctx context.Context, tc *Context) (*Result, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if tc.NegotiationStatus == nil {
		tc.NegotiationStatus = scenario.NegotiationStatus{}
	}

	policy := tc.Difficulty.Policy()

	state := StateAmbiguityCheck
	if policy.SkipAmbiguity {
		state = StateRouter
	}
	o.logger.Debug("turn starting at %s (difficulty %q)", state, tc.Difficulty)

	start := time.Now()
	rosterLen := 0
	agentTurns := 0

	for state != StateEnd {
		next := o.processState(ctx, state, tc, policy)
		if !IsValidTransition(state, next) {
			return nil, fmt.Errorf("invalid turn transition %s -> %s", state, next)
		}
		if state == StateRouter {
			rosterLen = len(tc.Roster)
		}
		if state == StateAgentTurn {
			agentTurns++
		}
		state = next
	}

	if o.recorder != nil {
		o.recorder.ObserveTurn(time.Since(start), rosterLen, agentTurns)
		if tc.Ambiguity.CurrentScore != nil && !policy.SkipAmbiguity {
			o.recorder.ObserveAmbiguity(*tc.Ambiguity.CurrentScore)
		}
	}
	o.logger.Info("turn complete: %d speaker(s), %d message(s) in history", agentTurns, len(tc.DialogueHistory))

	return &Result{
		DialogueHistory:   tc.DialogueHistory,
		NegotiationStatus: tc.NegotiationStatus,
		Ambiguity:         tc.Ambiguity,
		Roster:            tc.Roster,
		IsConcluding:      tc.IsConcluding,
		AgentTurns:        agentTurns,
	}, nil
}

// processState runs one state's work and returns the next state.
func (o *Orchestrator) processState(ctx context.Context, state State, tc *Context, policy scenario.Policy) State {
	switch state {
	case StateAmbiguityCheck:
		o.scorer.Score(ctx, tc.LatestStudentMessage(), &tc.Ambiguity)
		return StateRouter

	case StateRouter:
		decision := o.router.Route(ctx, tc.DialogueHistory, tc.StakeholderRoles())
		tc.Roster = decision.Roster
		tc.IsConcluding = decision.IsConcluding
		return StateLoopController

	case StateLoopController:
		if len(tc.Roster) == 0 || tc.Roster[0] == scenario.RosterEnd {
			return StateEnd
		}
		return StateAgentTurn

	case StateAgentTurn:
		o.responder.Respond(ctx, tc)
		if policy.SkipConflictCheck {
			return StateLoopController
		}
		return StateConflictCheck

	case StateConflictCheck:
		tc.NegotiationStatus = o.checker.Check(ctx, tc.Requirements, tc.NegotiationStatus, policy)
		return StateLoopController

	default:
		o.logger.Error("unknown turn state %q", state)
		return StateEnd
	}
}
