// Package templates provides prompt template rendering for persona and
// analysis completions.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed *.tpl.md
var templateFS embed.FS

// TemplateData holds the data for template rendering. Each template uses the
// subset of fields relevant to it.
type TemplateData struct {
	// Persona prompt fields.
	Role             string
	ProjectContext   string
	Goals            string
	NonNegotiables   string
	Background       string
	PeerRoles        []string
	KeyRequirements  []string
	StyleInstruction string

	// Routing fields.
	Roles   []string
	History string

	// Ambiguity scoring fields.
	StudentMessage string

	// Conflict check and requirements analysis fields.
	RequirementLines  []string
	ReasonInstruction string
	StakeholderList   string

	// Evaluation fields.
	CoreConflict        string
	StudentRequirements string
	StudentNotes        string
	Transcript          string
}

// PromptTemplate identifies one embedded prompt template.
type PromptTemplate string

const (
	// PersonaSystemTemplate is the system prompt for a stakeholder persona.
	PersonaSystemTemplate PromptTemplate = "persona_system.tpl.md"
	// RoutingTemplate asks the model who speaks next.
	RoutingTemplate PromptTemplate = "routing.tpl.md"
	// AmbiguityScoringTemplate rates the clarity of a student question.
	AmbiguityScoringTemplate PromptTemplate = "ambiguity_scoring.tpl.md"
	// ConflictCheckTemplate analyzes elicited requirements for conflicts.
	ConflictCheckTemplate PromptTemplate = "conflict_check.tpl.md"
	// RequirementsAnalysisTemplate is the workbench conflict analysis with source attribution.
	RequirementsAnalysisTemplate PromptTemplate = "requirements_analysis.tpl.md"
	// EvaluationTemplate grades a student's final submission.
	EvaluationTemplate PromptTemplate = "evaluation.tpl.md"
)

// Renderer handles prompt template rendering.
type Renderer struct {
	templates map[PromptTemplate]*template.Template
}

// NewRenderer creates a renderer with all embedded templates preparsed.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		templates: make(map[PromptTemplate]*template.Template),
	}

	templateNames := []PromptTemplate{
		PersonaSystemTemplate,
		RoutingTemplate,
		AmbiguityScoringTemplate,
		ConflictCheckTemplate,
		RequirementsAnalysisTemplate,
		EvaluationTemplate,
	}

	for _, name := range templateNames {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}

		tmpl, err := template.New(string(name)).Funcs(template.FuncMap{
			"join": strings.Join,
		}).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		r.templates[name] = tmpl
	}

	return r, nil
}

// Render renders the specified template with the given data.
func (r *Renderer) Render(templateName PromptTemplate, data *TemplateData) (string, error) {
	tmpl, exists := r.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateName, err)
	}

	return strings.TrimSpace(buf.String()), nil
}
