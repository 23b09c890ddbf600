package persistence

import (
	"time"

	"github.com/google/uuid"

	"reclassroom/pkg/scenario"
)

// Session status constants.
const (
	SessionActive    = "active"
	SessionSubmitted = "submitted"
	SessionEvaluated = "evaluated"
)

// SessionRecord is one student's run of a scenario. The conversation and
// negotiation fields are stored as JSON columns.
//
//nolint:govet // struct alignment optimization not critical for this type
type SessionRecord struct {
	ID         string `json:"id"`
	ScenarioID string `json:"scenario_id"`
	StudentID  string `json:"student_id"`
	Status     string `json:"status"`

	DialogueHistory   []scenario.DialogueMessage     `json:"dialogue_history"`
	NegotiationStatus scenario.NegotiationStatus     `json:"negotiation_status"`
	Ambiguity         scenario.AmbiguityState        `json:"ambiguity_state"`
	Requirements      []scenario.ElicitedRequirement `json:"requirements"`
	ResponseStyle     scenario.ResponseStyle         `json:"response_style"`
	IsConcluding      bool                           `json:"is_concluding"`

	FinalSpecification *FinalSpecification `json:"final_specification,omitempty"`
	EvaluationReport   *string             `json:"evaluation_report,omitempty"` // Raw JSON report

	// TurnSeq increments with every persisted turn and backs the optimistic
	// guard against two in-flight turns for one session.
	TurnSeq   int64     `json:"turn_seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FinalSpecification is the student's submitted deliverable.
type FinalSpecification struct {
	Requirements            []scenario.ElicitedRequirement `json:"requirements"`
	ConflictResolutionNotes string                         `json:"conflict_resolution_notes"`
}

// InteractionRecord is one logged dialogue message, kept append-only for
// transcripts and evaluation.
type InteractionRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSessionID generates a new UUID for a session.
func NewSessionID() string {
	return uuid.New().String()
}

// NewInteractionID generates a new UUID for an interaction record.
func NewInteractionID() string {
	return uuid.New().String()
}
