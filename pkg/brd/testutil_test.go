package brd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/brdflow/pkg/flowgraph"
	"github.com/randalmurphal/brdflow/pkg/llm"
)

const templateMarkdown = `# Project BRD

## Scope

## Requirements

## Risks
`

const (
	intakeJSON = `{"project_name":"Atlas","project_type":"greenfield","primary_workflows":["onboarding"],"assumptions":[],"open_questions":[]}`

	factsJSON = "```json\n" + `{
  "goals": [
    {"statement": "Cut onboarding to one day", "evidence": [{"source_name": "notes.txt", "locator": "line 1", "quote": "one day"}]},
    {"statement": "Unsupported claim", "evidence": []}
  ],
  "requirements": [
    {"statement": "SSO login", "evidence": [{"source_name": "notes.txt", "locator": "line 2", "quote": "SSO"}]}
  ]
}` + "\n```"

	noGapsJSON = `{"blocking":[],"non_blocking":[]}`

	gapsJSON = `{
  "blocking": [{"section": "Scope", "field": "owner", "severity": "blocking", "suggested_evidence_to_provide": "Name the owner", "light_assumption_template": null}],
  "non_blocking": [{"section": "Risks", "field": "mitigation", "severity": "non_blocking", "suggested_evidence_to_provide": "List mitigations", "light_assumption_template": "Assume standard controls"}]
}`

	outlineJSON = `{"ordered_sections":["Risks","Scope","Budget","Scope"]}`

	assemblyJSON = `{"brd_model":{"sections":["Scope","Risks"],"open_questions":["Who owns it?"]},"brd_markdown":"# Atlas BRD\n\n## Scope\nOnboarding.\n\n## Risks\nNone."}`
)

// stageOf identifies which stage a prompt belongs to.
func stageOf(prompt string) string {
	switch {
	case strings.Contains(prompt, "Produce an IntakeSummary"):
		return NodeIntake
	case strings.Contains(prompt, "Build a FactPack"):
		return NodeFactExtractor
	case strings.Contains(prompt, "Compare the FactPack"):
		return NodeGapChecker
	case strings.Contains(prompt, "choose the sections to write"):
		return NodeOutlineBuilder
	case strings.Contains(prompt, "You write ONE section"):
		return NodeSectionWriter
	case strings.Contains(prompt, "Merge the ordered section drafts"):
		return NodeAssembler
	}
	return ""
}

// sectionOf extracts the section name from a section prompt.
func sectionOf(prompt string) string {
	const marker = `- Write the "`
	i := strings.Index(prompt, marker)
	if i < 0 {
		return ""
	}
	rest := prompt[i+len(marker):]
	return rest[:strings.Index(rest, `"`)]
}

// fakeLLM answers by stage. Each stage consumes its queue in order and
// repeats the last answer once the queue is exhausted.
type fakeLLM struct {
	mu      sync.Mutex
	answers map[string][]string
	prompts map[string][]string
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		answers: map[string][]string{},
		prompts: map[string][]string{},
	}
}

func (f *fakeLLM) on(stage string, answers ...string) *fakeLLM {
	f.answers[stage] = answers
	return f
}

// happy configures answers for a run without gaps.
func (f *fakeLLM) happy() *fakeLLM {
	return f.
		on(NodeIntake, intakeJSON).
		on(NodeFactExtractor, factsJSON).
		on(NodeGapChecker, noGapsJSON).
		on(NodeOutlineBuilder, outlineJSON).
		on(NodeAssembler, assemblyJSON)
}

func (f *fakeLLM) promptsFor(stage string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts[stage]...)
}

func (f *fakeLLM) client() *llm.MockClient {
	return llm.NewMockClient("").WithGenerateFunc(func(ctx context.Context, req llm.Request) (llm.Response, error) {
		stage := stageOf(req.Prompt)

		f.mu.Lock()
		f.prompts[stage] = append(f.prompts[stage], req.Prompt)
		var text string
		if stage == NodeSectionWriter {
			if _, scripted := f.answers[stage]; !scripted {
				name := sectionOf(req.Prompt)
				text = "## " + name + "\n\nDraft for " + name + "."
			}
		}
		if q := f.answers[stage]; len(q) > 0 {
			text = q[0]
			if len(q) > 1 {
				f.answers[stage] = q[1:]
			}
		}
		f.mu.Unlock()

		return llm.Response{Text: text, Usage: llm.EstimateUsage(req.Prompt, text)}, nil
	})
}

// fixture writes a template and one input file.
type fixture struct {
	dir      string
	template string
	notes    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	fx := fixture{
		dir:      dir,
		template: filepath.Join(dir, "template.md"),
		notes:    filepath.Join(dir, "notes.txt"),
	}
	writeFile(t, fx.template, templateMarkdown)
	writeFile(t, fx.notes, "Onboarding must take one day.\nUsers log in with SSO.\n")
	return fx
}

func (fx fixture) state(t *testing.T, output string) State {
	t.Helper()
	s, err := NewState(RunParams{
		TemplatePath: fx.template,
		Inputs:       []string{fx.notes},
		OutputPath:   output,
	})
	require.NoError(t, err)
	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testCtx() flowgraph.Context {
	return flowgraph.NewContext(context.Background(),
		flowgraph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}
