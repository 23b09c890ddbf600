package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioYAML = `
id: campus-portal
name: Campus Event Portal
project_context: >
  The university wants a portal where student groups publicize events.
difficulty_level: "Medium (Hint Mode)"
stakeholders:
  - role: Student Life Coordinator
    attributes:
      goals: An open event gallery with photo uploads
      background: Ten years in student affairs
  - role: Director of IT Security
    attributes:
      goals: Minimize data exposure
      non_negotiable_constraints: The system must not store user-generated content
evaluation_criteria:
  key_requirements:
    - The portal must list upcoming events
    - Event photos must be hosted externally
  core_conflict: Open gallery vs. no stored user content
`

func TestParseYAML(t *testing.T) {
	s, err := ParseYAML([]byte(scenarioYAML))
	require.NoError(t, err)

	assert.Equal(t, "campus-portal", s.ID)
	assert.Equal(t, DifficultyMedium, s.Difficulty)
	assert.Equal(t, []string{"Student Life Coordinator", "Director of IT Security"}, s.Roles())
	assert.Len(t, s.EvaluationCriteria.KeyRequirements, 2)
	assert.Contains(t, s.EvaluationCriteria.CoreConflict, "Open gallery")
}

func TestParseYAMLDefaultsDifficulty(t *testing.T) {
	doc := `
id: minimal
project_context: Some project.
stakeholders:
  - role: Owner
`
	s, err := ParseYAML([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, DifficultyEasy, s.Difficulty)
}

func TestParseYAMLRejectsInvalid(t *testing.T) {
	_, err := ParseYAML([]byte("id: x\nstakeholders: []\nproject_context: y\n"))
	assert.Error(t, err)

	_, err = ParseYAML([]byte("{{not yaml"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o600))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "campus-portal", s.ID)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
