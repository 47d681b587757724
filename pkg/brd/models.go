package brd

import (
	"github.com/randalmurphal/brdflow/pkg/extract"
)

// TemplateSection is one section of the target document with the fields it
// must cover.
type TemplateSection = extract.Section

// Project types an intake summary can report.
const (
	ProjectGreenfield = "greenfield"
	ProjectBrownfield = "brownfield"
	ProjectUnknown    = "unknown"
)

// Gap severities.
const (
	SeverityBlocking    = "blocking"
	SeverityNonBlocking = "non_blocking"
)

// IntakeSummary classifies the project described by the sources.
type IntakeSummary struct {
	ProjectName      *string  `json:"project_name"`
	ProjectType      string   `json:"project_type" validate:"omitempty,oneof=greenfield brownfield unknown"`
	PrimaryWorkflows []string `json:"primary_workflows"`
	Assumptions      []string `json:"assumptions"`
	OpenQuestions    []string `json:"open_questions"`
}

// Evidence ties a fact to a place in a source.
type Evidence struct {
	SourceName string `json:"source_name" validate:"required"`
	Locator    string `json:"locator" validate:"required"`
	Quote      string `json:"quote" validate:"required"`
}

// Fact is a statement extracted from the sources.
type Fact struct {
	Statement string     `json:"statement" validate:"required"`
	Evidence  []Evidence `json:"evidence" validate:"dive"`
}

// FactPack groups facts by category.
type FactPack struct {
	Goals              []Fact `json:"goals" validate:"dive"`
	ScopeIn            []Fact `json:"scope_in" validate:"dive"`
	ScopeOut           []Fact `json:"scope_out" validate:"dive"`
	Stakeholders       []Fact `json:"stakeholders" validate:"dive"`
	Requirements       []Fact `json:"requirements" validate:"dive"`
	Constraints        []Fact `json:"constraints" validate:"dive"`
	Risks              []Fact `json:"risks" validate:"dive"`
	Assumptions        []Fact `json:"assumptions" validate:"dive"`
	DataSources        []Fact `json:"data_sources" validate:"dive"`
	Integrations       []Fact `json:"integrations" validate:"dive"`
	SecurityCompliance []Fact `json:"security_compliance" validate:"dive"`
}

// categories returns a pointer to every category slice, in declaration order.
func (p *FactPack) categories() []*[]Fact {
	return []*[]Fact{
		&p.Goals, &p.ScopeIn, &p.ScopeOut, &p.Stakeholders, &p.Requirements,
		&p.Constraints, &p.Risks, &p.Assumptions, &p.DataSources,
		&p.Integrations, &p.SecurityCompliance,
	}
}

// Len returns the number of facts across all categories.
func (p FactPack) Len() int {
	n := 0
	for _, c := range p.categories() {
		n += len(*c)
	}
	return n
}

// withEvidenceOnly returns a copy of p without facts that carry no evidence,
// and how many facts were dropped.
func (p FactPack) withEvidenceOnly() (FactPack, int) {
	dropped := 0
	for _, c := range p.categories() {
		kept := make([]Fact, 0, len(*c))
		for _, f := range *c {
			if len(f.Evidence) == 0 {
				dropped++
				continue
			}
			kept = append(kept, f)
		}
		*c = kept
	}
	return p, dropped
}

// GapItem is a template field the facts cannot support.
type GapItem struct {
	Section            string  `json:"section" validate:"required"`
	Field              string  `json:"field" validate:"required"`
	Severity           string  `json:"severity" validate:"omitempty,oneof=blocking non_blocking"`
	SuggestedEvidence  string  `json:"suggested_evidence_to_provide" validate:"required"`
	AssumptionTemplate *string `json:"light_assumption_template"`
}

// GapReport lists missing information by severity.
type GapReport struct {
	Blocking    []GapItem `json:"blocking" validate:"dive"`
	NonBlocking []GapItem `json:"non_blocking" validate:"dive"`
}

// HasGaps reports whether any gap was found.
func (r GapReport) HasGaps() bool {
	return len(r.Blocking) > 0 || len(r.NonBlocking) > 0
}

// Len returns the total number of gaps.
func (r GapReport) Len() int {
	return len(r.Blocking) + len(r.NonBlocking)
}

// ForSection returns the gaps that belong to section.
func (r GapReport) ForSection(section string) GapReport {
	var out GapReport
	for _, g := range r.Blocking {
		if g.Section == section {
			out.Blocking = append(out.Blocking, g)
		}
	}
	for _, g := range r.NonBlocking {
		if g.Section == section {
			out.NonBlocking = append(out.NonBlocking, g)
		}
	}
	return out
}

// Outline is the ordered list of sections to draft.
type Outline struct {
	OrderedSections []string `json:"ordered_sections"`
}

// Model is the structured form of the assembled document.
type Model struct {
	Sections      []string `json:"sections"`
	OpenQuestions []string `json:"open_questions"`
}

// AssemblyOut is the assembler's expected output.
type AssemblyOut struct {
	Model    *Model `json:"brd_model" validate:"required"`
	Markdown string `json:"brd_markdown" validate:"required"`
}
