// Package turn implements the per-turn orchestration engine: ambiguity
// scoring, speaker routing, persona response generation, and conflict
// re-assessment, sequenced by an explicit state machine.
package turn

import "fmt"

// State identifies a node in the turn state machine.
type State string

// Turn state constants. One turn walks this graph from its difficulty-chosen
// entry point to StateEnd.
const (
	// StateAmbiguityCheck scores the clarity of the student's latest message.
	StateAmbiguityCheck State = "AMBIGUITY_CHECK"

	// StateRouter decides the roster of speakers. Runs exactly once per turn.
	StateRouter State = "ROUTER"

	// StateLoopController is a pure branch point: speak again or end the turn.
	StateLoopController State = "LOOP_CONTROLLER"

	// StateAgentTurn produces one persona reply and shortens the roster by one.
	StateAgentTurn State = "AGENT_TURN"

	// StateConflictCheck re-assesses the elicited requirements after a speaker.
	StateConflictCheck State = "CONFLICT_CHECK"

	// StateEnd is terminal for the turn.
	StateEnd State = "END"
)

// turnTransitions is the canonical transition map for the turn state machine.
var turnTransitions = map[State][]State{
	// The ambiguity check, when it runs, always hands off to the router.
	StateAmbiguityCheck: {StateRouter},

	// The router seeds the roster and unconditionally enters the loop.
	StateRouter: {StateLoopController},

	// The loop controller either schedules the next speaker or ends the turn.
	StateLoopController: {StateAgentTurn, StateEnd},

	// After a speaker, conflicts are re-checked unless the tier skips that.
	StateAgentTurn: {StateConflictCheck, StateLoopController},

	// The conflict check always returns to the loop controller.
	StateConflictCheck: {StateLoopController},

	// END is terminal.
	StateEnd: {},
}

// ValidStates returns every state in the turn graph.
func ValidStates() []State {
	return []State{
		StateAmbiguityCheck, StateRouter, StateLoopController,
		StateAgentTurn, StateConflictCheck, StateEnd,
	}
}

// ValidateState checks that s is a known turn state.
func ValidateState(s State) error {
	for _, valid := range ValidStates() {
		if s == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid turn state: %s", s)
}

// ValidNextStates returns the allowed successor states of from.
func ValidNextStates(from State) []State {
	return turnTransitions[from]
}

// IsValidTransition checks if a transition between two states is allowed.
func IsValidTransition(from, to State) bool {
	for _, state := range ValidNextStates(from) {
		if state == to {
			return true
		}
	}
	return false
}
