// Package scenario defines the domain types for requirements-elicitation
// sessions: stakeholder configurations, dialogue, requirements, and the
// negotiation and ambiguity state tracked across turns.
package scenario

import (
	"fmt"
	"strings"
)

// Reserved role names that may not be used as stakeholder roles.
const (
	// RoleStudent is the dialogue role of the human participant.
	RoleStudent = "student"
	// RoleSystem is the dialogue role for platform-generated notices.
	RoleSystem = "system"
	// RosterEnd is the roster sentinel that terminates a turn.
	RosterEnd = "END"
)

// StakeholderAttributes describes the persona behind a stakeholder role.
type StakeholderAttributes struct {
	Goals                    string `json:"goals" yaml:"goals"`
	Background               string `json:"background" yaml:"background"`
	Constraints              string `json:"constraints" yaml:"constraints"`
	NonNegotiableConstraints string `json:"non_negotiable_constraints" yaml:"non_negotiable_constraints"`
	CommunicationStyle       string `json:"communication_style" yaml:"communication_style"`
	DomainKnowledge          string `json:"domain_knowledge" yaml:"domain_knowledge"`
}

// StakeholderConfig is one simulated stakeholder. Immutable once a session starts.
type StakeholderConfig struct {
	Role       string                `json:"role" yaml:"role"`
	Attributes StakeholderAttributes `json:"attributes" yaml:"attributes"`
}

// DialogueMessage is one entry in the conversation. Role is "student",
// "system", or a stakeholder role. The sequence is append-only.
type DialogueMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ElicitedRequirement is a requirement the student recorded in the workbench.
// Owned and mutated by the workbench; the core only reads it.
type ElicitedRequirement struct {
	Requirement string `json:"requirement"`
	Source      string `json:"source"` // Stakeholder role it came from
	Priority    string `json:"priority"`
	Category    string `json:"category"`
}

// Requirement standing statuses.
const (
	StatusAgreed   = "Agreed"
	StatusDisputed = "Disputed"
	StatusResolved = "Resolved"
)

// RequirementStanding is the conflict classification of one requirement.
type RequirementStanding struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// NegotiationStatus maps requirement text (exact, used as key) to its standing.
type NegotiationStatus map[string]RequirementStanding

// Clone returns a shallow copy safe to mutate independently.
func (ns NegotiationStatus) Clone() NegotiationStatus {
	out := make(NegotiationStatus, len(ns))
	for k, v := range ns {
		out[k] = v
	}
	return out
}

// AmbiguityState tracks clarity scoring of the student's questions.
// History is append-only, one entry per turn in which scoring ran.
type AmbiguityState struct {
	CurrentScore *int   `json:"current_score,omitempty"` // 1-10, nil before first scoring
	Reason       string `json:"reason"`
	History      []int  `json:"history"`
}

// Record overwrites the current score and reason and appends to history.
func (a *AmbiguityState) Record(score int, reason string) {
	a.CurrentScore = &score
	a.Reason = reason
	a.History = append(a.History, score)
}

// EvaluationCriteria is the instructor's answer key. Visible to personas as
// a private rubric, never to the student.
type EvaluationCriteria struct {
	KeyRequirements []string `json:"key_requirements" yaml:"key_requirements"`
	CoreConflict    string   `json:"core_conflict" yaml:"core_conflict"`
}

// Scenario is an instructor-authored exercise definition.
type Scenario struct {
	ID                 string              `json:"id" yaml:"id"`
	Name               string              `json:"name" yaml:"name"`
	ProjectContext     string              `json:"project_context" yaml:"project_context"`
	Stakeholders       []StakeholderConfig `json:"stakeholders" yaml:"stakeholders"`
	EvaluationCriteria EvaluationCriteria  `json:"evaluation_criteria" yaml:"evaluation_criteria"`
	Difficulty         Difficulty          `json:"difficulty_level" yaml:"difficulty_level"`
}

// Roles returns the stakeholder role names in declaration order.
func (s *Scenario) Roles() []string {
	roles := make([]string, len(s.Stakeholders))
	for i := range s.Stakeholders {
		roles[i] = s.Stakeholders[i].Role
	}
	return roles
}

// FindStakeholder returns the config for role, or nil when absent.
func (s *Scenario) FindStakeholder(role string) *StakeholderConfig {
	for i := range s.Stakeholders {
		if s.Stakeholders[i].Role == role {
			return &s.Stakeholders[i]
		}
	}
	return nil
}

// Validate checks a scenario for internal consistency.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("scenario id must not be empty")
	}
	if strings.TrimSpace(s.ProjectContext) == "" {
		return fmt.Errorf("scenario %s: project context must not be empty", s.ID)
	}
	if len(s.Stakeholders) == 0 {
		return fmt.Errorf("scenario %s: at least one stakeholder is required", s.ID)
	}
	if err := s.Difficulty.Validate(); err != nil {
		return fmt.Errorf("scenario %s: %w", s.ID, err)
	}

	seen := make(map[string]bool, len(s.Stakeholders))
	for i := range s.Stakeholders {
		role := s.Stakeholders[i].Role
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("scenario %s: stakeholder %d has an empty role", s.ID, i)
		}
		switch role {
		case RoleStudent, RoleSystem, RosterEnd:
			return fmt.Errorf("scenario %s: role %q is reserved", s.ID, role)
		}
		if seen[role] {
			return fmt.Errorf("scenario %s: duplicate stakeholder role %q", s.ID, role)
		}
		seen[role] = true
	}
	return nil
}
