package brd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/brdflow/pkg/render"
)

func TestNewState(t *testing.T) {
	inputs := []string{"a.txt"}
	s, err := NewState(RunParams{Inputs: inputs, TemplatePath: "t.pdf", OutputPath: "out.docx"})
	require.NoError(t, err)

	assert.Equal(t, DefaultChunkSize, s.ChunkSize)
	assert.Equal(t, DefaultMaxChunks, s.MaxChunks)
	assert.Equal(t, "t.pdf", s.TemplatePath)
	assert.Empty(t, s.SourceTexts)
	assert.Nil(t, s.Intake)

	inputs[0] = "changed"
	assert.Equal(t, []string{"a.txt"}, s.Inputs, "state owns its inputs")
}

func TestNewState_NoInputs(t *testing.T) {
	s, err := NewState(RunParams{TemplatePath: "t.md"})
	require.NoError(t, err)
	assert.Empty(t, s.Inputs)
	assert.NoError(t, s.Validate())
}

func TestNewState_Errors(t *testing.T) {
	_, err := NewState(RunParams{Inputs: []string{"a"}, ChunkSize: -1})
	require.Error(t, err)

	_, err = NewState(RunParams{Inputs: []string{"a"}, OutputPath: "out/brd.pdf"})
	require.ErrorIs(t, err, render.ErrUnsupportedFormat)

	for _, out := range []string{"", "brd.docx", "brd.MD", "brd.markdown", "brd.txt"} {
		_, err = NewState(RunParams{Inputs: []string{"a"}, OutputPath: out})
		assert.NoError(t, err, out)
	}
}

func TestState_Validate(t *testing.T) {
	s, err := NewState(RunParams{Inputs: []string{"a"}})
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	s.Outline.OrderedSections = []string{"Scope", "Risks"}
	s.Drafts = []string{"## Scope"}
	require.ErrorIs(t, s.Validate(), ErrDraftMismatch)

	s.Drafts = append(s.Drafts, "## Risks")
	require.NoError(t, s.Validate())

	s.OutputPath = "brd.pptx"
	require.ErrorIs(t, s.Validate(), render.ErrUnsupportedFormat)
}

func TestState_JSONRoundTrip(t *testing.T) {
	name := "Atlas"
	feedback := "more detail"
	s := State{
		Inputs:   []string{"a.txt"},
		Template: []TemplateSection{{Name: "Scope", RequiredFields: []string{"content"}}},
		Intake:   &IntakeSummary{ProjectName: &name, ProjectType: ProjectBrownfield},
		Gaps:     GapReport{Blocking: []GapItem{{Section: "Scope", Field: "owner", Severity: SeverityBlocking}}},
		Feedback: &feedback,
	}
	s.Usage.Add(llmUsage(10, 5))

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"user_force_generate":false`)
	assert.Contains(t, string(data), `"suggested_evidence_to_provide"`)

	var back State
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}

func TestFactPack_WithEvidenceOnly(t *testing.T) {
	ev := []Evidence{{SourceName: "notes.txt", Locator: "l1", Quote: "q"}}
	pack := FactPack{
		Goals:              []Fact{{Statement: "kept", Evidence: ev}, {Statement: "dropped"}},
		SecurityCompliance: []Fact{{Statement: "also dropped", Evidence: []Evidence{}}},
	}

	filtered, dropped := pack.withEvidenceOnly()
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 1, filtered.Len())
	assert.Empty(t, filtered.SecurityCompliance)
	assert.Equal(t, 3, pack.Len(), "original pack is untouched")
}

func TestGapReport_ForSection(t *testing.T) {
	r := GapReport{
		Blocking:    []GapItem{{Section: "Scope", Field: "owner"}, {Section: "Risks", Field: "impact"}},
		NonBlocking: []GapItem{{Section: "Scope", Field: "dates"}},
	}

	scope := r.ForSection("Scope")
	assert.Equal(t, 2, scope.Len())
	assert.Equal(t, "owner", scope.Blocking[0].Field)
	assert.Equal(t, "dates", scope.NonBlocking[0].Field)
	assert.False(t, r.ForSection("Budget").HasGaps())
}
