package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/brdflow/pkg/brd"
	"github.com/randalmurphal/brdflow/pkg/flowgraph"
)

type runOptions struct {
	template         string
	inputs           []string
	brownfieldInputs []string
	runID            string
	offline          bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a BRD from input files or directories",
		Example: `  brdflow run --template template.pdf --inputs transcripts/ notes.md --output-docx out/brd.docx
  brdflow run --inputs meeting.txt --checkpoint-sqlite runs.db --run-id atlas-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			applyRunFlags(cmd, a)
			return a.run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.template, "template", "", "BRD template (.pdf, .md, .docx, .txt); defaults to the built-in section list")
	f.StringSliceVar(&opts.inputs, "inputs", nil, "input files or directories (repeat or comma-separate)")
	f.StringSliceVar(&opts.brownfieldInputs, "brownfield-inputs", nil, "existing system documents for brownfield context")
	f.String("output-docx", "", "where to write the document (.docx or .md)")
	f.Int("chunk-size", 0, "maximum characters per source chunk")
	f.Int("max-chunks", 0, "maximum source chunks across all inputs")
	f.Int("section-concurrency", 0, "sections drafted in parallel")
	f.Int("gap-loop-limit", 0, "times the gap review may send the run back to fact extraction")
	f.Int("review-loop-limit", 0, "times review feedback may send the run back to outlining")
	f.String("model", "", "model name")
	f.String("base-url", "", "OpenAI-compatible API base URL")
	f.StringVar(&opts.runID, "run-id", "", "run identifier for checkpoints (default: random UUID)")
	f.BoolVar(&opts.offline, "offline", false, "skip the model; every stage uses its fallback")
	_ = cmd.MarkFlagRequired("inputs")

	return cmd
}

// applyRunFlags overlays explicitly set run flags onto the settings.
func applyRunFlags(cmd *cobra.Command, a *app) {
	f := cmd.Flags()
	s := &a.settings
	if f.Changed("output-docx") {
		s.Pipeline.OutputPath, _ = f.GetString("output-docx")
	}
	ints := map[string]*int{
		"chunk-size":          &s.Pipeline.ChunkSize,
		"max-chunks":          &s.Pipeline.MaxChunks,
		"section-concurrency": &s.Pipeline.SectionConcurrency,
		"gap-loop-limit":      &s.Pipeline.GapLoopLimit,
		"review-loop-limit":   &s.Pipeline.ReviewLoopLimit,
	}
	for name, dst := range ints {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	if f.Changed("model") {
		s.LLM.Model, _ = f.GetString("model")
	}
	if f.Changed("base-url") {
		s.LLM.BaseURL, _ = f.GetString("base-url")
	}
}

func (a *app) run(ctx context.Context, opts runOptions) error {
	if err := a.settings.Validate(); err != nil {
		return err
	}
	p := a.settings.Pipeline

	state, err := brd.NewState(brd.RunParams{
		TemplatePath:     opts.template,
		Inputs:           opts.inputs,
		BrownfieldInputs: opts.brownfieldInputs,
		OutputPath:       p.OutputPath,
		ChunkSize:        p.ChunkSize,
		MaxChunks:        p.MaxChunks,
	})
	if err != nil {
		return err
	}

	runID := opts.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := a.logger.With(slog.String("command", "run"))

	store, durable, err := openStore(a.settings.Checkpoint)
	if err != nil {
		return err
	}
	defer store.Close()

	tel, err := setupTelemetry(a.settings.Telemetry, a.streams.err, logger)
	if err != nil {
		return err
	}
	defer func() { _ = tel.shutdown(context.Background()) }()

	pipeline := a.newPipeline(newClient(a.settings.LLM, opts.offline, logger), tel)
	fgCtx := flowgraph.NewContext(ctx, flowgraph.WithLogger(logger), flowgraph.WithContextRunID(runID))

	result, err := pipeline.Run(fgCtx, state,
		flowgraph.WithCheckpointing(store),
		flowgraph.WithRunID(runID),
		flowgraph.WithTracing(tel.tracing),
	)
	if err != nil {
		if durable {
			logger.Error("run failed; continue it with brdflow resume",
				slog.String("run_id", runID), slog.String("error", err.Error()))
		}
		return err
	}

	a.report(result, runID)
	return nil
}

// report prints the outcome of a finished run.
func (a *app) report(s brd.State, runID string) {
	out := a.streams.out
	fmt.Fprintf(out, "\nRun %s complete: %d sections, %d tokens\n", runID, len(s.Outline.OrderedSections), s.Usage.TotalTokens)
	if s.OutputPath != "" {
		fmt.Fprintf(out, "Document written to %s\n", s.OutputPath)
	}
}
