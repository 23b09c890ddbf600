package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reclassroom/pkg/scenario"
)

// ErrNotFound is returned when a record is absent.
var ErrNotFound = errors.New("record not found")

// ErrStaleSession is returned when a session update loses the optimistic
// turn-sequence check: another turn for the same session committed first.
var ErrStaleSession = errors.New("session was updated by a concurrent turn")

// Store provides database operations on one connection.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveScenario inserts or updates a scenario definition.
func (s *Store) SaveScenario(sc *scenario.Scenario) error {
	if err := sc.Validate(); err != nil {
		return err
	}

	stakeholders, err := json.Marshal(sc.Stakeholders)
	if err != nil {
		return fmt.Errorf("failed to marshal stakeholders: %w", err)
	}
	criteria, err := json.Marshal(sc.EvaluationCriteria)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation criteria: %w", err)
	}

	query := `
		INSERT INTO scenarios (id, name, project_context, stakeholders, evaluation_criteria, difficulty)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			project_context = excluded.project_context,
			stakeholders = excluded.stakeholders,
			evaluation_criteria = excluded.evaluation_criteria,
			difficulty = excluded.difficulty
	`
	if _, err := s.db.Exec(query, sc.ID, sc.Name, sc.ProjectContext, string(stakeholders), string(criteria), string(sc.Difficulty)); err != nil {
		return fmt.Errorf("failed to save scenario %s: %w", sc.ID, err)
	}
	return nil
}

// GetScenario loads one scenario by ID.
func (s *Store) GetScenario(id string) (*scenario.Scenario, error) {
	row := s.db.QueryRow(
		`SELECT id, name, project_context, stakeholders, evaluation_criteria, difficulty FROM scenarios WHERE id = ?`, id)
	return scanScenario(row)
}

// ListScenarios returns all scenario definitions ordered by name.
func (s *Store) ListScenarios() ([]*scenario.Scenario, error) {
	rows, err := s.db.Query(
		`SELECT id, name, project_context, stakeholders, evaluation_criteria, difficulty FROM scenarios ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scenarios []*scenario.Scenario
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scenarios: %w", err)
	}
	return scenarios, nil
}

// DeleteScenario removes a scenario definition.
func (s *Store) DeleteScenario(id string) error {
	result, err := s.db.Exec(`DELETE FROM scenarios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scenario %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenario(row rowScanner) (*scenario.Scenario, error) {
	var sc scenario.Scenario
	var stakeholders, criteria, difficulty string

	err := row.Scan(&sc.ID, &sc.Name, &sc.ProjectContext, &stakeholders, &criteria, &difficulty)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan scenario: %w", err)
	}

	if err := json.Unmarshal([]byte(stakeholders), &sc.Stakeholders); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stakeholders for %s: %w", sc.ID, err)
	}
	if err := json.Unmarshal([]byte(criteria), &sc.EvaluationCriteria); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evaluation criteria for %s: %w", sc.ID, err)
	}
	sc.Difficulty = scenario.Difficulty(difficulty)
	return &sc, nil
}

// CreateSession starts a new active session for a scenario and student.
func (s *Store) CreateSession(scenarioID, studentID string, style scenario.ResponseStyle) (*SessionRecord, error) {
	if _, err := s.GetScenario(scenarioID); err != nil {
		return nil, fmt.Errorf("cannot create session: %w", err)
	}

	now := time.Now().UTC()
	record := &SessionRecord{
		ID:                NewSessionID(),
		ScenarioID:        scenarioID,
		StudentID:         studentID,
		Status:            SessionActive,
		DialogueHistory:   []scenario.DialogueMessage{},
		NegotiationStatus: scenario.NegotiationStatus{},
		Requirements:      []scenario.ElicitedRequirement{},
		ResponseStyle:     style,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	query := `
		INSERT INTO sessions (id, scenario_id, student_id, status, response_style, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, record.ID, record.ScenarioID, record.StudentID, record.Status,
		string(record.ResponseStyle), record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return record, nil
}

const sessionColumns = `id, scenario_id, student_id, status, dialogue_history, negotiation_status,
	ambiguity_state, requirements, response_style, is_concluding,
	final_specification, evaluation_report, turn_seq, created_at, updated_at`

// GetSession loads one session by ID.
func (s *Store) GetSession(id string) (*SessionRecord, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// FindActiveSession returns the newest active session for a scenario and
// student, or ErrNotFound.
func (s *Store) FindActiveSession(scenarioID, studentID string) (*SessionRecord, error) {
	row := s.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE scenario_id = ? AND student_id = ? AND status = ?
		 ORDER BY created_at DESC LIMIT 1`,
		scenarioID, studentID, SessionActive)
	return scanSession(row)
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var rec SessionRecord
	var history, negotiation, ambiguity, requirements, style string
	var isConcluding int
	var finalSpec, evalReport sql.NullString

	err := row.Scan(&rec.ID, &rec.ScenarioID, &rec.StudentID, &rec.Status,
		&history, &negotiation, &ambiguity, &requirements, &style, &isConcluding,
		&finalSpec, &evalReport, &rec.TurnSeq, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if err := json.Unmarshal([]byte(history), &rec.DialogueHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dialogue history for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(negotiation), &rec.NegotiationStatus); err != nil {
		return nil, fmt.Errorf("failed to unmarshal negotiation status for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(ambiguity), &rec.Ambiguity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ambiguity state for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(requirements), &rec.Requirements); err != nil {
		return nil, fmt.Errorf("failed to unmarshal requirements for %s: %w", rec.ID, err)
	}
	rec.ResponseStyle = scenario.ResponseStyle(style)
	rec.IsConcluding = isConcluding != 0

	if finalSpec.Valid && finalSpec.String != "" {
		var spec FinalSpecification
		if err := json.Unmarshal([]byte(finalSpec.String), &spec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal final specification for %s: %w", rec.ID, err)
		}
		rec.FinalSpecification = &spec
	}
	if evalReport.Valid && evalReport.String != "" {
		report := evalReport.String
		rec.EvaluationReport = &report
	}
	return &rec, nil
}

// UpdateSessionTurn persists a turn's outcome. The write succeeds only when
// the session's turn_seq still matches rec.TurnSeq; a concurrent turn that
// committed first makes this return ErrStaleSession. On success rec.TurnSeq
// is advanced to the stored value.
func (s *Store) UpdateSessionTurn(rec *SessionRecord) error {
	history, err := json.Marshal(rec.DialogueHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal dialogue history: %w", err)
	}
	negotiation, err := json.Marshal(rec.NegotiationStatus)
	if err != nil {
		return fmt.Errorf("failed to marshal negotiation status: %w", err)
	}
	ambiguity, err := json.Marshal(rec.Ambiguity)
	if err != nil {
		return fmt.Errorf("failed to marshal ambiguity state: %w", err)
	}
	requirements, err := json.Marshal(rec.Requirements)
	if err != nil {
		return fmt.Errorf("failed to marshal requirements: %w", err)
	}

	isConcluding := 0
	if rec.IsConcluding {
		isConcluding = 1
	}

	query := `
		UPDATE sessions SET
			dialogue_history = ?,
			negotiation_status = ?,
			ambiguity_state = ?,
			requirements = ?,
			is_concluding = ?,
			turn_seq = turn_seq + 1,
			updated_at = ?
		WHERE id = ? AND turn_seq = ?
	`
	result, err := s.db.Exec(query, string(history), string(negotiation), string(ambiguity),
		string(requirements), isConcluding, time.Now().UTC(), rec.ID, rec.TurnSeq)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", rec.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrStaleSession
	}
	rec.TurnSeq++
	return nil
}

// UpdateSessionRequirements replaces the session's elicited requirement list.
// Workbench edits go through here; the turn-sequence guard does not apply.
func (s *Store) UpdateSessionRequirements(sessionID string, requirements []scenario.ElicitedRequirement) error {
	data, err := json.Marshal(requirements)
	if err != nil {
		return fmt.Errorf("failed to marshal requirements: %w", err)
	}
	return s.updateOne(sessionID,
		`UPDATE sessions SET requirements = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now().UTC(), sessionID)
}

// UpdateSessionResponseStyle changes the persona verbosity for future turns.
func (s *Store) UpdateSessionResponseStyle(sessionID string, style scenario.ResponseStyle) error {
	return s.updateOne(sessionID,
		`UPDATE sessions SET response_style = ?, updated_at = ? WHERE id = ?`,
		string(style), time.Now().UTC(), sessionID)
}

// UpdateSessionNegotiationStatus replaces the session's negotiation status.
func (s *Store) UpdateSessionNegotiationStatus(sessionID string, status scenario.NegotiationStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal negotiation status: %w", err)
	}
	return s.updateOne(sessionID,
		`UPDATE sessions SET negotiation_status = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now().UTC(), sessionID)
}

// SubmitFinalSpecification stores the student's deliverable and marks the
// session submitted.
func (s *Store) SubmitFinalSpecification(sessionID string, spec *FinalSpecification) error {
	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal final specification: %w", err)
	}
	return s.updateOne(sessionID,
		`UPDATE sessions SET final_specification = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(data), SessionSubmitted, time.Now().UTC(), sessionID)
}

// SaveEvaluationReport stores the evaluation JSON and marks the session
// evaluated.
func (s *Store) SaveEvaluationReport(sessionID, reportJSON string) error {
	return s.updateOne(sessionID,
		`UPDATE sessions SET evaluation_report = ?, status = ?, updated_at = ? WHERE id = ?`,
		reportJSON, SessionEvaluated, time.Now().UTC(), sessionID)
}

func (s *Store) updateOne(sessionID, query string, args ...any) error {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", sessionID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// LogInteraction appends one dialogue message to the session transcript.
func (s *Store) LogInteraction(sessionID string, msg scenario.DialogueMessage) error {
	query := `INSERT INTO interactions (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.Exec(query, NewInteractionID(), sessionID, msg.Role, msg.Content, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to log interaction for session %s: %w", sessionID, err)
	}
	return nil
}

// GetSessionInteractions returns a session's transcript in insertion order.
func (s *Store) GetSessionInteractions(sessionID string) ([]InteractionRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, role, content, created_at FROM interactions
		 WHERE session_id = ? ORDER BY created_at, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions for session %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	var records []InteractionRecord
	for rows.Next() {
		var rec InteractionRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Role, &rec.Content, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interactions: %w", err)
	}
	return records, nil
}
