package turn

import (
	"fmt"
	"strings"

	"reclassroom/pkg/scenario"
)

// Context is the bundle threaded through one orchestrator run. It is owned
// exclusively by that invocation and never shared across concurrent turns for
// the same session; the caller persists the returned Result afterwards.
type Context struct {
	ProjectContext     string
	Stakeholders       []scenario.StakeholderConfig
	EvaluationCriteria scenario.EvaluationCriteria
	Requirements       []scenario.ElicitedRequirement

	DialogueHistory   []scenario.DialogueMessage
	Roster            []string
	NegotiationStatus scenario.NegotiationStatus
	Ambiguity         scenario.AmbiguityState

	Difficulty    scenario.Difficulty
	ResponseStyle scenario.ResponseStyle
	IsConcluding  bool
}

// Result is what one orchestrator run hands back for persistence. The roster
// is always consumed: empty or the lone sentinel.
type Result struct {
	DialogueHistory   []scenario.DialogueMessage
	NegotiationStatus scenario.NegotiationStatus
	Ambiguity         scenario.AmbiguityState
	Roster            []string
	IsConcluding      bool
	AgentTurns        int
}

// StakeholderRoles returns the configured role names in declaration order.
func (tc *Context) StakeholderRoles() []string {
	roles := make([]string, len(tc.Stakeholders))
	for i := range tc.Stakeholders {
		roles[i] = tc.Stakeholders[i].Role
	}
	return roles
}

// FindStakeholder returns the config for role, or nil when absent.
func (tc *Context) FindStakeholder(role string) *scenario.StakeholderConfig {
	for i := range tc.Stakeholders {
		if tc.Stakeholders[i].Role == role {
			return &tc.Stakeholders[i]
		}
	}
	return nil
}

// LatestStudentMessage returns the content of the newest student entry in the
// dialogue history, or an empty string when there is none.
func (tc *Context) LatestStudentMessage() string {
	for i := len(tc.DialogueHistory) - 1; i >= 0; i-- {
		if tc.DialogueHistory[i].Role == scenario.RoleStudent {
			return tc.DialogueHistory[i].Content
		}
	}
	return ""
}

// Validate checks that the context is runnable: a turn needs stakeholders and
// a student message to respond to.
func (tc *Context) Validate() error {
	if strings.TrimSpace(tc.ProjectContext) == "" {
		return fmt.Errorf("turn context: project context must not be empty")
	}
	if len(tc.Stakeholders) == 0 {
		return fmt.Errorf("turn context: at least one stakeholder is required")
	}
	if len(tc.DialogueHistory) == 0 {
		return fmt.Errorf("turn context: dialogue history must not be empty")
	}
	if tc.LatestStudentMessage() == "" {
		return fmt.Errorf("turn context: no student message in dialogue history")
	}
	return nil
}
