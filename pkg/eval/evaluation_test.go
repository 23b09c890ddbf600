package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reclassroom/pkg/llm"
	"reclassroom/pkg/persistence"
	"reclassroom/pkg/scenario"
)

func submittedSession() *persistence.SessionRecord {
	return &persistence.SessionRecord{
		ID:     "sess-1",
		Status: persistence.SessionSubmitted,
		FinalSpecification: &persistence.FinalSpecification{
			Requirements: []scenario.ElicitedRequirement{
				{Requirement: "Patrons can borrow e-books", Source: "Head Librarian"},
			},
			ConflictResolutionNotes: "Security agreed to SSO instead of per-action 2FA.",
		},
	}
}

func evaluationScenario() *scenario.Scenario {
	return &scenario.Scenario{
		ID:             "scn-1",
		Name:           "Library Modernization",
		ProjectContext: "A library system",
		Stakeholders:   testStakeholders(),
		EvaluationCriteria: scenario.EvaluationCriteria{
			KeyRequirements: []string{"E-book lending", "Secure patron accounts"},
			CoreConflict:    "Usability versus security controls",
		},
	}
}

const goodReportJSON = `{
	"coverage_assessment": {"score": 4, "feedback": "Most key requirements captured."},
	"conflict_identification_assessment": {"score": 5, "feedback": "Core conflict surfaced and negotiated."},
	"solution_validity_assessment": {"score": 3, "feedback": "SSO compromise is workable but underspecified."},
	"overall_feedback": "Solid elicitation with room for deeper follow-up questions."
}`

func TestEvaluateSubmission(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{{Content: goodReportJSON}}, nil)
	evaluator, err := NewEvaluator(mock)
	require.NoError(t, err)

	transcript := []persistence.InteractionRecord{
		{Role: "student", Content: "Hi all, what do you need?"},
		{Role: "Head Librarian", Content: "E-book lending, above all."},
	}

	report, err := evaluator.EvaluateSubmission(context.Background(), submittedSession(), evaluationScenario(), transcript)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Coverage.Score)
	assert.Equal(t, 5, report.ConflictIdentification.Score)
	assert.Equal(t, 3, report.SolutionValidity.Score)
	assert.NotEmpty(t, report.OverallFeedback)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, llm.FormatJSON, calls[0].ResponseFormat)
	assert.InDelta(t, evaluationTemperature, calls[0].Temperature, 0.001)

	prompt := calls[0].Messages[0].Content
	assert.Contains(t, prompt, "E-book lending")
	assert.Contains(t, prompt, "Usability versus security controls")
	assert.Contains(t, prompt, "SSO instead of per-action 2FA")
	assert.Contains(t, prompt, "- Head Librarian: E-book lending, above all.")
}

func TestEvaluateSubmissionClampsScores(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{{Content: `{
		"coverage_assessment": {"score": 0, "feedback": "low"},
		"conflict_identification_assessment": {"score": 9, "feedback": "high"},
		"solution_validity_assessment": {"score": 3, "feedback": "ok"},
		"overall_feedback": "Mixed."
	}`}}, nil)
	evaluator, err := NewEvaluator(mock)
	require.NoError(t, err)

	report, err := evaluator.EvaluateSubmission(context.Background(), submittedSession(), evaluationScenario(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Coverage.Score)
	assert.Equal(t, 5, report.ConflictIdentification.Score)
}

func TestEvaluateSubmissionRequiresSpecification(t *testing.T) {
	mock := llm.NewMockClient(nil, nil)
	evaluator, err := NewEvaluator(mock)
	require.NoError(t, err)

	session := submittedSession()
	session.FinalSpecification = nil

	_, err = evaluator.EvaluateSubmission(context.Background(), session, evaluationScenario(), nil)
	assert.Error(t, err)
	assert.Equal(t, 0, mock.CallCount())
}

func TestEvaluateSubmissionMalformedReport(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{{Content: "not json"}}, nil)
	evaluator, err := NewEvaluator(mock)
	require.NoError(t, err)

	_, err = evaluator.EvaluateSubmission(context.Background(), submittedSession(), evaluationScenario(), nil)
	assert.Error(t, err)
}
