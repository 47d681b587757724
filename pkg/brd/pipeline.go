package brd

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/randalmurphal/brdflow/pkg/flowgraph"
	"github.com/randalmurphal/brdflow/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/brdflow/pkg/flowgraph/observability"
	"github.com/randalmurphal/brdflow/pkg/human"
	"github.com/randalmurphal/brdflow/pkg/llm"
)

// Stage node IDs.
const (
	NodeLoadSources    = "load_sources"
	NodeIntake         = "intake"
	NodeFactExtractor  = "fact_extractor"
	NodeGapChecker     = "gap_checker"
	NodeGapHumanReview = "gap_human_review"
	NodeOutlineBuilder = "outline_builder"
	NodeSectionWriter  = "section_writer"
	NodeAssembler      = "assembler"
	NodeHumanReview    = "human_review"
	NodeApplyFeedback  = "apply_feedback"
	NodePersistDoc     = "persist_doc"
)

// Default loop bounds. The gap loop re-enters fact_extractor and the review
// loop re-enters outline_builder.
const (
	DefaultGapLoopLimit    = 3
	DefaultReviewLoopLimit = 5
)

// Pipeline holds the collaborators the stages delegate to.
type Pipeline struct {
	client      llm.Client
	prompter    human.Prompter
	policy      *llm.Policy
	metrics     observability.MetricsRecorder
	concurrency int
	gapLimit    int
	reviewLimit int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSectionConcurrency drafts up to n sections at once. Default 1.
func WithSectionConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithGapLoopLimit bounds how often the gap loop may send the run back to
// fact extraction. Negative values are ignored.
func WithGapLoopLimit(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.gapLimit = n
		}
	}
}

// WithReviewLoopLimit bounds how often review feedback may send the run
// back to outlining. Negative values are ignored.
func WithReviewLoopLimit(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.reviewLimit = n
		}
	}
}

// WithMetrics records generation and run metrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// New creates a pipeline that generates text with client and asks prompter
// for decisions.
func New(client llm.Client, prompter human.Prompter, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:      client,
		prompter:    prompter,
		concurrency: 1,
		gapLimit:    DefaultGapLoopLimit,
		reviewLimit: DefaultReviewLoopLimit,
	}
	for _, opt := range opts {
		opt(p)
	}

	var policyOpts []llm.PolicyOption
	if p.metrics != nil {
		policyOpts = append(policyOpts, llm.WithPolicyMetrics(p.metrics))
	}
	p.policy = llm.NewPolicy(client, policyOpts...)
	return p
}

// Graph returns the stage graph:
//
//	load_sources -> intake -> fact_extractor -> gap_checker -> gap_human_review
//	gap_human_review -(GapBranch)-> outline_builder | fact_extractor
//	outline_builder -> section_writer -> assembler -> human_review
//	human_review -(ReviewBranch)-> persist_doc | apply_feedback
//	apply_feedback -> outline_builder
//	persist_doc -> END
func (p *Pipeline) Graph() *flowgraph.Graph[State] {
	return flowgraph.NewGraph[State]().
		AddNode(NodeLoadSources, p.node(NodeLoadSources, p.loadSources)).
		AddNode(NodeIntake, p.node(NodeIntake, p.intake)).
		AddNode(NodeFactExtractor, p.node(NodeFactExtractor, p.extractFacts)).
		AddNode(NodeGapChecker, p.node(NodeGapChecker, p.checkGaps)).
		AddNode(NodeGapHumanReview, p.node(NodeGapHumanReview, p.reviewGaps)).
		AddNode(NodeOutlineBuilder, p.node(NodeOutlineBuilder, p.buildOutline)).
		AddNode(NodeSectionWriter, p.node(NodeSectionWriter, p.writeSections)).
		AddNode(NodeAssembler, p.node(NodeAssembler, p.assemble)).
		AddNode(NodeHumanReview, p.node(NodeHumanReview, p.reviewDocument)).
		AddNode(NodeApplyFeedback, p.node(NodeApplyFeedback, p.applyFeedback)).
		AddNode(NodePersistDoc, p.node(NodePersistDoc, p.persist)).
		SetEntry(NodeLoadSources).
		AddEdge(NodeLoadSources, NodeIntake).
		AddEdge(NodeIntake, NodeFactExtractor).
		AddEdge(NodeFactExtractor, NodeGapChecker).
		AddEdge(NodeGapChecker, NodeGapHumanReview).
		AddConditionalEdge(NodeGapHumanReview, GapBranch, NodeOutlineBuilder, NodeFactExtractor).
		AddEdge(NodeOutlineBuilder, NodeSectionWriter).
		AddEdge(NodeSectionWriter, NodeAssembler).
		AddEdge(NodeAssembler, NodeHumanReview).
		AddConditionalEdge(NodeHumanReview, ReviewBranch, NodePersistDoc, NodeApplyFeedback).
		AddEdge(NodeApplyFeedback, NodeOutlineBuilder).
		AddEdge(NodePersistDoc, flowgraph.END)
}

// Compile builds and validates the stage graph.
func (p *Pipeline) Compile() (*flowgraph.CompiledGraph[State], error) {
	return p.Graph().Compile()
}

// RunOptions returns the loop bounds and metrics every run of this
// pipeline uses.
func (p *Pipeline) RunOptions() []flowgraph.RunOption {
	opts := []flowgraph.RunOption{
		flowgraph.WithLoopLimit(NodeFactExtractor, p.gapLimit),
		flowgraph.WithLoopLimit(NodeOutlineBuilder, p.reviewLimit),
	}
	if p.metrics != nil {
		opts = append(opts, flowgraph.WithMetrics(p.metrics))
	}
	return opts
}

// Run executes the pipeline on s. opts are applied after the pipeline's own
// run options and may override them.
func (p *Pipeline) Run(ctx flowgraph.Context, s State, opts ...flowgraph.RunOption) (State, error) {
	if err := s.Validate(); err != nil {
		return s, err
	}
	compiled, err := p.Compile()
	if err != nil {
		return s, err
	}
	return compiled.Run(ctx, s, append(p.RunOptions(), opts...)...)
}

// Resume continues a checkpointed run from its latest checkpoint.
func (p *Pipeline) Resume(ctx flowgraph.Context, store checkpoint.Store, runID string, opts ...flowgraph.RunOption) (State, error) {
	compiled, err := p.Compile()
	if err != nil {
		return State{}, err
	}
	return compiled.Resume(ctx, store, runID,
		flowgraph.WithRunOptions(append(p.RunOptions(), opts...)...),
		flowgraph.WithStateValidation(func(v any) error {
			if st, ok := v.(State); ok {
				return st.Validate()
			}
			return nil
		}),
	)
}

// node wraps a stage with a debug dump of the state it returns.
func (p *Pipeline) node(name string, fn flowgraph.NodeFunc[State]) flowgraph.NodeFunc[State] {
	return func(ctx flowgraph.Context, s State) (State, error) {
		out, err := fn(ctx, s)
		if err != nil {
			return out, err
		}
		logger := ctx.Logger()
		if logger.Enabled(ctx, slog.LevelDebug) {
			if data, mErr := json.Marshal(out); mErr == nil {
				logger.Debug("stage state", slog.String("stage", name), slog.String("state", string(data)))
			}
		}
		return out, nil
	}
}

// loggerContext carries a stage logger into goroutines that only have a
// plain context.
type loggerContext struct {
	context.Context
	logger *slog.Logger
}

func (c loggerContext) Logger() *slog.Logger { return c.logger }
