package brd

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/brdflow/pkg/extract"
	"github.com/randalmurphal/brdflow/pkg/flowgraph"
	"github.com/randalmurphal/brdflow/pkg/llm"
	"github.com/randalmurphal/brdflow/pkg/render"
)

// Questions asked at the human checkpoints.
const (
	QuestionGenerateAnyway = "Generate anyway?"
	QuestionMoreInputs     = "Provide additional input paths (comma-separated), or leave empty to re-check the current inputs:"
	QuestionApprove        = "Approve BRD?"
	QuestionFeedback       = "Provide feedback or corrections:"
)

// intakeFallbackQuestion is the open question recorded when intake yields nothing.
const intakeFallbackQuestion = "Intake model returned empty response; please confirm project details."

const sectionPlaceholder = "_Content for this section could not be generated. Provide more source material and regenerate._"

// loadSources extracts every input and brownfield location and loads the
// template sections.
func (p *Pipeline) loadSources(ctx flowgraph.Context, s State) (State, error) {
	logger := ctx.Logger()
	opts := extract.ChunkOptions{Size: s.ChunkSize, MaxChunks: s.MaxChunks}

	src, err := extract.Sources(ctx, s.Inputs, opts, logger)
	if err != nil {
		return s, err
	}
	bf, err := extract.Sources(ctx, s.BrownfieldInputs, opts, logger)
	if err != nil {
		return s, err
	}

	template, err := extract.TemplateSections(s.TemplatePath)
	if err != nil {
		return s, fmt.Errorf("load template: %w", err)
	}

	s.SourceTexts = src.Texts
	s.BrownfieldTexts = bf.Texts
	s.LoadedInputs = slices.Clone(s.Inputs)
	s.Template = template

	logger.Info("sources loaded",
		slog.Int("files", len(src.Files)),
		slog.Int("chunks", len(src.Texts)),
		slog.Int("skipped", len(src.Skipped)),
		slog.Int("brownfield_chunks", len(bf.Texts)),
		slog.Int("template_sections", len(template)),
	)
	return s, nil
}

func (p *Pipeline) intake(ctx flowgraph.Context, s State) (State, error) {
	text, err := intakePrompt.Render(map[string]any{
		"inputs":     joinSources(s.SourceTexts),
		"brownfield": joinSources(s.BrownfieldTexts),
	})
	if err != nil {
		return s, err
	}

	summary, out, err := llm.GenerateStructured(ctx, p.policy, NodeIntake, text, intakeMaxTokens, func() IntakeSummary {
		return IntakeSummary{
			ProjectType:   ProjectUnknown,
			OpenQuestions: []string{intakeFallbackQuestion},
		}
	})
	s.Usage.Add(out.Usage)
	if err != nil {
		return s, err
	}
	if summary.ProjectType == "" {
		summary.ProjectType = ProjectUnknown
	}

	s.Intake = &summary
	ctx.Logger().Info("intake classified",
		slog.String("project_type", summary.ProjectType),
		slog.Int("tokens", out.Usage.TotalTokens))
	return s, nil
}

// extractFacts first extracts any input added at the gap checkpoint, then
// rebuilds the fact pack from all source texts.
func (p *Pipeline) extractFacts(ctx flowgraph.Context, s State) (State, error) {
	s, err := p.syncSources(ctx, s)
	if err != nil {
		return s, err
	}

	text, err := factsPrompt.Render(map[string]any{
		"inputs":     joinSources(s.SourceTexts),
		"brownfield": joinSources(s.BrownfieldTexts),
	})
	if err != nil {
		return s, err
	}

	facts, out, err := llm.GenerateStructured(ctx, p.policy, NodeFactExtractor, text, factsMaxTokens, func() FactPack {
		return FactPack{}
	})
	s.Usage.Add(out.Usage)
	if err != nil {
		return s, err
	}

	facts, dropped := facts.withEvidenceOnly()
	if dropped > 0 {
		ctx.Logger().Warn("dropped facts without evidence", slog.Int("dropped", dropped))
	}

	s.Facts = facts
	ctx.Logger().Info("facts extracted",
		slog.Int("facts", facts.Len()),
		slog.Int("tokens", out.Usage.TotalTokens))
	return s, nil
}

// syncSources extracts the input locations not yet in LoadedInputs.
func (p *Pipeline) syncSources(ctx flowgraph.Context, s State) (State, error) {
	pending := s.pendingInputs()
	if len(pending) == 0 {
		return s, nil
	}
	logger := ctx.Logger()

	room := s.MaxChunks - len(s.SourceTexts)
	if s.MaxChunks > 0 && room <= 0 {
		logger.Warn("chunk limit reached, new inputs not extracted",
			slog.Any("inputs", pending), slog.Int("max_chunks", s.MaxChunks))
	} else {
		opts := extract.ChunkOptions{Size: s.ChunkSize}
		if s.MaxChunks > 0 {
			opts.MaxChunks = room
		}
		res, err := extract.Sources(ctx, pending, opts, logger)
		if err != nil {
			return s, err
		}
		texts := make([]string, 0, len(s.SourceTexts)+len(res.Texts))
		texts = append(texts, s.SourceTexts...)
		s.SourceTexts = append(texts, res.Texts...)
		logger.Info("additional sources loaded",
			slog.Int("files", len(res.Files)),
			slog.Int("chunks", len(res.Texts)))
	}

	loaded := make([]string, 0, len(s.LoadedInputs)+len(pending))
	loaded = append(loaded, s.LoadedInputs...)
	s.LoadedInputs = append(loaded, pending...)
	return s, nil
}

func (p *Pipeline) checkGaps(ctx flowgraph.Context, s State) (State, error) {
	text, err := gapsPrompt.Render(map[string]any{
		"facts":    s.Facts,
		"template": s.Template,
	})
	if err != nil {
		return s, err
	}

	report, out, err := llm.GenerateStructured(ctx, p.policy, NodeGapChecker, text, gapsMaxTokens, func() GapReport {
		return GapReport{}
	})
	s.Usage.Add(out.Usage)
	if err != nil {
		return s, err
	}

	s.Gaps = normalizeGaps(ctx.Logger(), report, s.sectionNames())
	ctx.Logger().Info("gaps checked",
		slog.Int("blocking", len(s.Gaps.Blocking)),
		slog.Int("non_blocking", len(s.Gaps.NonBlocking)),
		slog.Int("tokens", out.Usage.TotalTokens))
	return s, nil
}

// normalizeGaps drops gaps for sections outside the template and keeps each
// (section, field) pair once, preferring the blocking entry.
func normalizeGaps(logger *slog.Logger, r GapReport, sections []string) GapReport {
	type key struct{ section, field string }
	seen := make(map[key]bool)

	filter := func(items []GapItem, severity string) []GapItem {
		var out []GapItem
		for _, g := range items {
			if !slices.Contains(sections, g.Section) {
				logger.Warn("discarding gap for unknown section",
					slog.String("section", g.Section), slog.String("field", g.Field))
				continue
			}
			k := key{g.Section, g.Field}
			if seen[k] {
				continue
			}
			seen[k] = true
			g.Severity = severity
			out = append(out, g)
		}
		return out
	}

	return GapReport{
		Blocking:    filter(r.Blocking, SeverityBlocking),
		NonBlocking: filter(r.NonBlocking, SeverityNonBlocking),
	}
}

// reviewGaps asks whether to generate despite the gaps. A refusal collects
// more input locations for the next fact extraction.
func (p *Pipeline) reviewGaps(ctx flowgraph.Context, s State) (State, error) {
	if !s.HasGaps() {
		s.ForceGenerate = false
		return s, nil
	}

	if err := p.prompter.Show(ctx, "Gaps detected", gapSummary(s.Gaps)); err != nil {
		return s, err
	}

	force, err := p.prompter.Confirm(ctx, QuestionGenerateAnyway)
	if err != nil {
		return s, err
	}
	if force {
		s.ForceGenerate = true
		return s, nil
	}

	answer, err := p.prompter.Ask(ctx, QuestionMoreInputs)
	if err != nil {
		return s, err
	}

	inputs := slices.Clone(s.Inputs)
	for _, item := range strings.Split(answer, ",") {
		item = strings.TrimSpace(item)
		if item == "" || slices.Contains(inputs, item) {
			continue
		}
		inputs = append(inputs, item)
	}
	if added := len(inputs) - len(s.Inputs); added > 0 {
		ctx.Logger().Info("inputs added at gap review", slog.Int("added", added))
	}

	s.Inputs = inputs
	s.ForceGenerate = false
	return s, nil
}

// gapSummary renders gaps as a Markdown list.
func gapSummary(r GapReport) string {
	var b strings.Builder
	write := func(title string, items []GapItem) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "### %s\n\n", title)
		for _, g := range items {
			fmt.Fprintf(&b, "- **%s** / %s", g.Section, g.Field)
			if g.SuggestedEvidence != "" {
				fmt.Fprintf(&b, ": %s", g.SuggestedEvidence)
			}
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	write("Blocking", r.Blocking)
	write("Non-blocking", r.NonBlocking)
	return strings.TrimRight(b.String(), "\n")
}

func (p *Pipeline) buildOutline(ctx flowgraph.Context, s State) (State, error) {
	sections := s.sectionNames()
	text, err := outlinePrompt.Render(map[string]any{
		"facts":          s.Facts,
		"template":       s.Template,
		"gaps":           s.Gaps,
		"force_generate": s.ForceGenerate,
		"feedback":       feedbackText(s.Feedback),
	})
	if err != nil {
		return s, err
	}

	outline, out, err := llm.GenerateStructured(ctx, p.policy, NodeOutlineBuilder, text, outlineMaxTokens, func() Outline {
		return Outline{OrderedSections: slices.Clone(sections)}
	})
	s.Usage.Add(out.Usage)
	if err != nil {
		return s, err
	}

	s.Outline = Outline{OrderedSections: orderSections(ctx.Logger(), outline.OrderedSections, sections)}
	ctx.Logger().Info("outline built",
		slog.Int("sections", len(s.Outline.OrderedSections)),
		slog.Int("tokens", out.Usage.TotalTokens))
	return s, nil
}

// orderSections keeps the requested sections that exist in the template,
// once each, in template order.
func orderSections(logger *slog.Logger, requested, template []string) []string {
	for _, name := range requested {
		if !slices.Contains(template, name) {
			logger.Warn("dropping outline section not in template", slog.String("section", name))
		}
	}
	out := make([]string, 0, len(requested))
	for _, name := range template {
		if slices.Contains(requested, name) && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// sectionPrompts renders one prompt per outlined section, in outline order.
// All prompts are rendered before any draft starts.
func sectionPrompts(s State) ([]string, error) {
	inputs := joinSources(s.SourceTexts)
	feedback := feedbackText(s.Feedback)

	prompts := make([]string, len(s.Outline.OrderedSections))
	for i, name := range s.Outline.OrderedSections {
		text, err := sectionPrompt.Render(map[string]any{
			"section":  name,
			"facts":    s.Facts,
			"gaps":     s.Gaps.ForSection(name),
			"feedback": feedback,
			"inputs":   inputs,
		})
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", name, err)
		}
		prompts[i] = text
	}
	return prompts, nil
}

// writeSections drafts every outlined section. Each goroutine writes only
// its own slot.
func (p *Pipeline) writeSections(ctx flowgraph.Context, s State) (State, error) {
	names := s.Outline.OrderedSections
	drafts := make([]string, len(names))
	usage := make([]llm.Usage, len(names))

	prompts, err := sectionPrompts(s)
	if err != nil {
		return s, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, name := range names {
		text := prompts[i]
		g.Go(func() error {
			sctx := loggerContext{Context: gctx, logger: ctx.Logger().With(slog.String("section", name))}
			draft, out, err := llm.GenerateText(sctx, p.policy, NodeSectionWriter, text, sectionMaxTokens, func() string {
				return fmt.Sprintf("## %s\n\n%s", name, sectionPlaceholder)
			})
			usage[i] = out.Usage
			if err != nil {
				return fmt.Errorf("section %q: %w", name, err)
			}
			drafts[i] = draft
			return nil
		})
	}
	err = g.Wait()

	var total llm.Usage
	for _, u := range usage {
		total.Add(u)
	}
	s.Usage.Add(total)
	if err != nil {
		return s, err
	}

	s.Drafts = drafts
	ctx.Logger().Info("sections drafted",
		slog.Int("sections", len(drafts)),
		slog.Int("tokens", total.TotalTokens))
	return s, nil
}

func (p *Pipeline) assemble(ctx flowgraph.Context, s State) (State, error) {
	if err := s.Validate(); err != nil {
		return s, err
	}

	text, err := assemblyPrompt.Render(map[string]any{
		"drafts":   jsonList(s.Drafts),
		"facts":    s.Facts,
		"template": s.Template,
	})
	if err != nil {
		return s, err
	}

	assembled, out, err := llm.GenerateStructured(ctx, p.policy, NodeAssembler, text, assemblyMaxTokens, func() AssemblyOut {
		return AssemblyOut{
			Model:    &Model{Sections: slices.Clone(s.Drafts), OpenQuestions: []string{}},
			Markdown: strings.Join(s.Drafts, "\n\n"),
		}
	})
	s.Usage.Add(out.Usage)
	if err != nil {
		return s, err
	}

	s.Model = assembled.Model
	s.Markdown = assembled.Markdown
	ctx.Logger().Info("document assembled",
		slog.Int("markdown_bytes", len(s.Markdown)),
		slog.Int("open_questions", len(s.Model.OpenQuestions)),
		slog.Int("tokens", out.Usage.TotalTokens))
	return s, nil
}

func (p *Pipeline) reviewDocument(ctx flowgraph.Context, s State) (State, error) {
	if err := p.prompter.Show(ctx, "Draft BRD", s.Markdown); err != nil {
		return s, err
	}

	approved, err := p.prompter.Confirm(ctx, QuestionApprove)
	if err != nil {
		return s, err
	}
	if approved {
		s.Approved = true
		s.Feedback = nil
		return s, nil
	}

	feedback, err := p.prompter.Ask(ctx, QuestionFeedback)
	if err != nil {
		return s, err
	}
	s.Approved = false
	s.Feedback = &feedback
	return s, nil
}

// applyFeedback discards the drafts so the next outline and sections are
// written with the feedback in their prompts.
func (p *Pipeline) applyFeedback(ctx flowgraph.Context, s State) (State, error) {
	s.Drafts = nil
	n := 0
	if s.Feedback != nil {
		n = len(*s.Feedback)
	}
	ctx.Logger().Info("feedback recorded", slog.Int("feedback_bytes", n))
	return s, nil
}

func (p *Pipeline) persist(ctx flowgraph.Context, s State) (State, error) {
	if s.OutputPath == "" {
		ctx.Logger().Info("no output path, document not written")
		return s, nil
	}
	if err := render.Save(s.Markdown, s.OutputPath); err != nil {
		return s, fmt.Errorf("persist document: %w", err)
	}
	ctx.Logger().Info("document written", slog.String("path", s.OutputPath))
	return s, nil
}

func joinSources(texts []string) string {
	return strings.Join(texts, "\n\n")
}

func feedbackText(f *string) string {
	if f == nil || strings.TrimSpace(*f) == "" {
		return "(none)"
	}
	return *f
}

// jsonList forces a string slice to render as a JSON array.
type jsonList []string
