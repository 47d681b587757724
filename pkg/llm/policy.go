package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/randalmurphal/brdflow/pkg/flowgraph/observability"
)

// Prefixes prepended to the prompt for the single retry after an empty
// response.
const (
	StructuredRetryPrefix = "Return ONLY valid JSON.\n\n"
	TextRetryPrefix       = "Return ONLY the requested content.\n\n"
)

// Policy applies the retry-once-then-fallback rule to a Client.
//
// An empty or whitespace-only response is retried exactly once with a
// stricter prompt. A second empty response yields the caller's fallback,
// never an error. Non-empty output that fails to parse is a
// MalformedOutputError and is not retried. Transport errors from the
// Client propagate unchanged.
type Policy struct {
	client  Client
	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithPolicyLogger logs one line per generation. Without it the logger of
// a flowgraph.Context is used when available.
func WithPolicyLogger(logger *slog.Logger) PolicyOption {
	return func(p *Policy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPolicyMetrics records generation counters.
func WithPolicyMetrics(m observability.MetricsRecorder) PolicyOption {
	return func(p *Policy) {
		if m != nil {
			p.metrics = m
		}
	}
}

// NewPolicy wraps client.
func NewPolicy(client Client, opts ...PolicyOption) *Policy {
	p := &Policy{
		client:  client,
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Outcome reports how a generation resolved.
type Outcome struct {
	// Attempts is 1 or 2.
	Attempts int
	// Fallback is true when both attempts came back empty.
	Fallback bool
	// Usage sums token usage over all attempts.
	Usage Usage
}

// GenerateStructured requests JSON for stage and decodes it into T.
// fallback supplies the value used when the output stays empty.
func GenerateStructured[T any](ctx context.Context, p *Policy, stage, prompt string, maxTokens int, fallback func() T) (T, Outcome, error) {
	text, out, err := p.generate(ctx, stage, prompt, maxTokens, StructuredRetryPrefix)
	if err != nil {
		var zero T
		return zero, out, err
	}
	if out.Fallback {
		return fallback(), out, nil
	}

	v, err := ParseJSON[T](stage, text)
	if err != nil {
		var zero T
		return zero, out, err
	}
	return v, out, nil
}

// GenerateText requests free-form content for stage. The returned text is
// trimmed. fallback supplies the text used when the output stays empty.
func GenerateText(ctx context.Context, p *Policy, stage, prompt string, maxTokens int, fallback func() string) (string, Outcome, error) {
	text, out, err := p.generate(ctx, stage, prompt, maxTokens, TextRetryPrefix)
	if err != nil {
		return "", out, err
	}
	if out.Fallback {
		return fallback(), out, nil
	}
	return strings.TrimSpace(text), out, nil
}

func (p *Policy) generate(ctx context.Context, stage, prompt string, maxTokens int, retryPrefix string) (string, Outcome, error) {
	var out Outcome
	if p == nil || p.client == nil {
		return "", out, ErrNilClient
	}

	text := ""
	for _, attemptPrompt := range []string{prompt, retryPrefix + prompt} {
		out.Attempts++
		resp, err := p.client.Generate(ctx, Request{Prompt: attemptPrompt, MaxTokens: maxTokens})
		if err != nil {
			return "", out, err
		}
		out.Usage.Add(resp.Usage)
		if strings.TrimSpace(resp.Text) != "" {
			text = resp.Text
			break
		}
	}
	out.Fallback = text == ""

	observability.LogGeneration(p.loggerFor(ctx), stage, out.Attempts, out.Fallback, out.Usage.TotalTokens)
	p.metrics.RecordGeneration(ctx, stage, out.Attempts, out.Fallback, out.Usage.TotalTokens)

	return text, out, nil
}

// loggerFor prefers the configured logger, then a logger carried by ctx
// (a flowgraph.Context during node execution).
func (p *Policy) loggerFor(ctx context.Context) *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	if lc, ok := ctx.(interface{ Logger() *slog.Logger }); ok {
		if l := lc.Logger(); l != nil {
			return l
		}
	}
	return slog.Default()
}
