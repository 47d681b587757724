package brd

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/brdflow/pkg/flowgraph"
	"github.com/randalmurphal/brdflow/pkg/llm"
)

func llmUsage(prompt, completion int) llm.Usage {
	return llm.Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalizeGaps(t *testing.T) {
	report := GapReport{
		Blocking: []GapItem{
			{Section: "Scope", Field: "owner", Severity: "non_blocking"},
			{Section: "Budget", Field: "amount"},
		},
		NonBlocking: []GapItem{
			{Section: "Scope", Field: "owner"},
			{Section: "Risks", Field: "mitigation"},
			{Section: "Risks", Field: "mitigation"},
		},
	}

	got := normalizeGaps(discard(), report, []string{"Scope", "Risks"})

	assert.Equal(t, []GapItem{{Section: "Scope", Field: "owner", Severity: SeverityBlocking}}, got.Blocking)
	assert.Equal(t, []GapItem{{Section: "Risks", Field: "mitigation", Severity: SeverityNonBlocking}}, got.NonBlocking)
}

func TestOrderSections(t *testing.T) {
	template := []string{"Scope", "Requirements", "Risks"}

	tests := []struct {
		name      string
		requested []string
		want      []string
	}{
		{"template order", []string{"Risks", "Scope"}, []string{"Scope", "Risks"}},
		{"duplicates", []string{"Scope", "Scope"}, []string{"Scope"}},
		{"unknown dropped", []string{"Budget", "Requirements"}, []string{"Requirements"}},
		{"empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderSections(discard(), tt.requested, template))
		})
	}
}

func TestGapBranch(t *testing.T) {
	gaps := GapReport{NonBlocking: []GapItem{{Section: "Scope"}}}

	tests := []struct {
		name  string
		state State
		want  string
	}{
		{"no gaps", State{}, NodeOutlineBuilder},
		{"no gaps ignores force", State{ForceGenerate: true}, NodeOutlineBuilder},
		{"gaps forced", State{Gaps: gaps, ForceGenerate: true}, NodeOutlineBuilder},
		{"gaps refused", State{Gaps: gaps}, NodeFactExtractor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GapBranch(testCtx(), tt.state))
		})
	}
}

func TestReviewBranch(t *testing.T) {
	assert.Equal(t, NodePersistDoc, ReviewBranch(testCtx(), State{Approved: true}))
	assert.Equal(t, NodeApplyFeedback, ReviewBranch(testCtx(), State{}))
}

func TestGapSummary(t *testing.T) {
	summary := gapSummary(GapReport{
		Blocking:    []GapItem{{Section: "Scope", Field: "owner", SuggestedEvidence: "Name the owner"}},
		NonBlocking: []GapItem{{Section: "Risks", Field: "mitigation"}},
	})

	assert.Equal(t, "### Blocking\n\n- **Scope** / owner: Name the owner\n\n### Non-blocking\n\n- **Risks** / mitigation", summary)
}

func TestSectionPrompts(t *testing.T) {
	feedback := "shorter please"
	s := State{
		SourceTexts: []string{"[SOURCE: notes.txt]\nSSO login"},
		Outline:     Outline{OrderedSections: []string{"Scope", "Risks"}},
		Gaps:        GapReport{Blocking: []GapItem{{Section: "Risks", Field: "mitigation", SuggestedEvidence: "List them"}}},
		Feedback:    &feedback,
	}

	prompts, err := sectionPrompts(s)
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	assert.Equal(t, "Scope", sectionOf(prompts[0]))
	assert.Equal(t, "Risks", sectionOf(prompts[1]))
	assert.Contains(t, prompts[1], "mitigation")
	assert.NotContains(t, prompts[0], "mitigation")
	for _, p := range prompts {
		assert.Equal(t, NodeSectionWriter, stageOf(p))
		assert.Contains(t, p, feedback)
		assert.Contains(t, p, "SSO login")
	}

	prompts, err = sectionPrompts(State{})
	require.NoError(t, err)
	assert.Empty(t, prompts)
}

func TestApplyFeedback(t *testing.T) {
	feedback := "shorter"
	s := State{
		Drafts:   []string{"## Scope"},
		Outline:  Outline{OrderedSections: []string{"Scope"}},
		Feedback: &feedback,
		Markdown: "## Scope",
	}

	out, err := (&Pipeline{}).applyFeedback(testCtx(), s)
	assert.NoError(t, err)
	assert.Nil(t, out.Drafts)
	assert.Equal(t, &feedback, out.Feedback)
	assert.Equal(t, s.Outline, out.Outline)
}

func TestFeedbackText(t *testing.T) {
	blank := "  "
	text := "add risks"
	assert.Equal(t, "(none)", feedbackText(nil))
	assert.Equal(t, "(none)", feedbackText(&blank))
	assert.Equal(t, "add risks", feedbackText(&text))
}

var _ flowgraph.RouterFunc[State] = GapBranch
var _ flowgraph.RouterFunc[State] = ReviewBranch
