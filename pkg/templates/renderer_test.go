package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRendererLoadsAllTemplates(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	assert.Len(t, r.templates, 6)
}

func TestRenderPersonaSystem(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(PersonaSystemTemplate, &TemplateData{
		Role:            "Head Librarian",
		ProjectContext:  "Library portal replacement",
		Goals:           "Preserve catalog workflows",
		NonNegotiables:  "No downtime during exams",
		PeerRoles:       []string{"Director of IT Security"},
		KeyRequirements: []string{"Full-text search"},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Head Librarian")
	assert.Contains(t, out, "Preserve catalog workflows")
	assert.Contains(t, out, "No downtime during exams")
	assert.Contains(t, out, "Director of IT Security")
	assert.Contains(t, out, "Full-text search")
}

func TestRenderRouting(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(RoutingTemplate, &TemplateData{
		Roles:   []string{"Head Librarian", "Director of IT Security"},
		History: "- student: what about backups?",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Head Librarian, Director of IT Security")
	assert.Contains(t, out, "what about backups?")
	assert.Contains(t, out, `"roster"`)
}

func TestRenderConflictCheckReasonInstruction(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(ConflictCheckTemplate, &TemplateData{
		RequirementLines:  []string{"The app must allow photo uploads"},
		ReasonInstruction: `For "Disputed" status, the reason must be an empty string "".`,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "The app must allow photo uploads")
	assert.Contains(t, out, "empty string")
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, err = r.Render(PromptTemplate("nope.tpl.md"), &TemplateData{})
	assert.Error(t, err)
}
