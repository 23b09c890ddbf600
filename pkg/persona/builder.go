// Package persona constructs system prompts for stakeholder personas from
// scenario configuration. Prompt construction is pure: no network or storage
// access, and identical inputs produce identical output.
package persona

import (
	"fmt"

	"reclassroom/pkg/scenario"
	"reclassroom/pkg/templates"
)

// Builder renders persona system prompts.
type Builder struct {
	renderer *templates.Renderer
}

// NewBuilder creates a prompt builder with preparsed templates.
func NewBuilder() (*Builder, error) {
	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create persona prompt renderer: %w", err)
	}
	return &Builder{renderer: renderer}, nil
}

// SystemPrompt builds the complete instruction string for one persona.
// keyRequirements is the instructor's rubric: the persona sees it for
// strategic awareness but is instructed never to disclose it.
func (b *Builder) SystemPrompt(
	stakeholder *scenario.StakeholderConfig,
	allStakeholders []scenario.StakeholderConfig,
	projectContext string,
	keyRequirements []string,
	style scenario.ResponseStyle,
) (string, error) {
	peerRoles := make([]string, 0, len(allStakeholders)-1)
	for i := range allStakeholders {
		if allStakeholders[i].Role != stakeholder.Role {
			peerRoles = append(peerRoles, allStakeholders[i].Role)
		}
	}

	prompt, err := b.renderer.Render(templates.PersonaSystemTemplate, &templates.TemplateData{
		Role:             stakeholder.Role,
		ProjectContext:   projectContext,
		Goals:            stakeholder.Attributes.Goals,
		NonNegotiables:   stakeholder.Attributes.NonNegotiableConstraints,
		Background:       stakeholder.Attributes.Background,
		PeerRoles:        peerRoles,
		KeyRequirements:  keyRequirements,
		StyleInstruction: style.Instruction(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to build persona prompt for %s: %w", stakeholder.Role, err)
	}
	return prompt, nil
}
