package brd

import (
	"errors"
	"fmt"
	"slices"

	"github.com/randalmurphal/brdflow/pkg/llm"
	"github.com/randalmurphal/brdflow/pkg/render"
)

// Default chunking parameters for source text.
const (
	DefaultChunkSize = 3000
	DefaultMaxChunks = 40
)

// ErrDraftMismatch is returned when drafts do not line up with the outline.
var ErrDraftMismatch = errors.New("brd: drafts do not match outline")

// State is the record every stage reads and returns.
// It is a plain value and round-trips through JSON for checkpoints.
type State struct {
	TemplatePath     string   `json:"template_path"`
	Inputs           []string `json:"inputs"`
	BrownfieldInputs []string `json:"brownfield_inputs"`

	// LoadedInputs are the input locations already extracted into SourceTexts.
	LoadedInputs    []string `json:"loaded_inputs,omitempty"`
	SourceTexts     []string `json:"source_texts"`
	BrownfieldTexts []string `json:"brownfield_texts"`

	// Template is the current template extraction.
	Template []TemplateSection `json:"template"`

	Intake *IntakeSummary `json:"intake"`
	Facts  FactPack       `json:"facts"`
	Gaps   GapReport      `json:"gaps"`

	Outline Outline  `json:"outline"`
	Drafts  []string `json:"section_drafts"`

	Model    *Model `json:"brd_model"`
	Markdown string `json:"brd_markdown"`

	ForceGenerate bool    `json:"user_force_generate"`
	Approved      bool    `json:"approved"`
	Feedback      *string `json:"human_feedback"`

	OutputPath string `json:"output_path"`
	ChunkSize  int    `json:"chunk_size"`
	MaxChunks  int    `json:"max_chunks"`

	Usage llm.Usage `json:"usage"`
}

// RunParams are the caller-supplied inputs of a run.
type RunParams struct {
	TemplatePath     string
	Inputs           []string
	BrownfieldInputs []string
	OutputPath       string
	ChunkSize        int
	MaxChunks        int
}

// NewState creates the initial state for a run. Zero chunk parameters take
// their defaults. An empty input list is allowed. An output path with no
// writer is rejected.
func NewState(p RunParams) (State, error) {
	if p.ChunkSize < 0 || p.MaxChunks < 0 {
		return State{}, fmt.Errorf("brd: chunk size and max chunks must not be negative")
	}

	s := State{
		TemplatePath:     p.TemplatePath,
		Inputs:           slices.Clone(p.Inputs),
		BrownfieldInputs: slices.Clone(p.BrownfieldInputs),
		OutputPath:       p.OutputPath,
		ChunkSize:        p.ChunkSize,
		MaxChunks:        p.MaxChunks,
	}
	if s.ChunkSize == 0 {
		s.ChunkSize = DefaultChunkSize
	}
	if s.MaxChunks == 0 {
		s.MaxChunks = DefaultMaxChunks
	}
	if err := s.Validate(); err != nil {
		return State{}, err
	}
	return s, nil
}

// Validate checks the invariants that hold between stages.
func (s State) Validate() error {
	if s.OutputPath != "" {
		if err := render.CheckFormat(s.OutputPath); err != nil {
			return fmt.Errorf("brd: output path: %w", err)
		}
	}
	if len(s.Drafts) > 0 && len(s.Drafts) != len(s.Outline.OrderedSections) {
		return fmt.Errorf("%w: %d drafts for %d sections",
			ErrDraftMismatch, len(s.Drafts), len(s.Outline.OrderedSections))
	}
	return nil
}

// HasGaps reports whether the last gap check found anything.
func (s State) HasGaps() bool {
	return s.Gaps.HasGaps()
}

// sectionNames returns the template section names in template order.
func (s State) sectionNames() []string {
	names := make([]string, len(s.Template))
	for i, sec := range s.Template {
		names[i] = sec.Name
	}
	return names
}

// pendingInputs returns the input locations not yet extracted.
func (s State) pendingInputs() []string {
	var out []string
	for _, in := range s.Inputs {
		if !slices.Contains(s.LoadedInputs, in) {
			out = append(out, in)
		}
	}
	return out
}
