package llm_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/brdflow/pkg/flowgraph/observability"
	"github.com/randalmurphal/brdflow/pkg/llm"
)

type generation struct {
	stage    string
	attempts int
	fallback bool
	tokens   int
}

// recordingMetrics captures RecordGeneration calls.
type recordingMetrics struct {
	observability.NoopMetrics
	mu   sync.Mutex
	gens []generation
}

func (m *recordingMetrics) RecordGeneration(_ context.Context, stage string, attempts int, fallback bool, tokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens = append(m.gens, generation{stage, attempts, fallback, tokens})
}

func outlineFallback() outline {
	return outline{OrderedSections: []string{"fallback"}}
}

func TestGenerateStructured_FirstAttempt(t *testing.T) {
	mock := llm.NewMockClient(`{"ordered_sections": ["Scope"]}`)
	p := llm.NewPolicy(mock)

	got, out, err := llm.GenerateStructured(context.Background(), p, "outline_builder", "make outline", 800, outlineFallback)

	require.NoError(t, err)
	assert.Equal(t, []string{"Scope"}, got.OrderedSections)
	assert.Equal(t, 1, out.Attempts)
	assert.False(t, out.Fallback)
	assert.Equal(t, 1, mock.CallCount())
	assert.Equal(t, 800, mock.Calls[0].MaxTokens)
	assert.Equal(t, "make outline", mock.Calls[0].Prompt)
}

func TestGenerateStructured_RetriesOnceAfterEmpty(t *testing.T) {
	mock := llm.NewMockClient("").WithResponses("  \n", `{"ordered_sections": ["Risks"]}`)
	p := llm.NewPolicy(mock)

	got, out, err := llm.GenerateStructured(context.Background(), p, "outline_builder", "make outline", 800, outlineFallback)

	require.NoError(t, err)
	assert.Equal(t, []string{"Risks"}, got.OrderedSections)
	assert.Equal(t, 2, out.Attempts)
	assert.False(t, out.Fallback)
	require.Equal(t, 2, mock.CallCount())
	assert.Equal(t, "Return ONLY valid JSON.\n\nmake outline", mock.Calls[1].Prompt)
}

func TestGenerateStructured_FallbackAfterTwoEmpty(t *testing.T) {
	mock := llm.NewMockClient("")
	p := llm.NewPolicy(mock)

	got, out, err := llm.GenerateStructured(context.Background(), p, "outline_builder", "make outline", 800, outlineFallback)

	require.NoError(t, err)
	assert.Equal(t, outlineFallback(), got)
	assert.Equal(t, 2, out.Attempts)
	assert.True(t, out.Fallback)
	assert.Equal(t, 2, mock.CallCount(), "never more than one retry")
}

func TestGenerateStructured_MalformedNotRetried(t *testing.T) {
	mock := llm.NewMockClient("I think the outline should be Scope, Risks.")
	p := llm.NewPolicy(mock)

	_, out, err := llm.GenerateStructured(context.Background(), p, "outline_builder", "make outline", 800, outlineFallback)

	assert.ErrorIs(t, err, llm.ErrMalformedOutput)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, mock.CallCount())
}

func TestGenerateStructured_TransportErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	p := llm.NewPolicy(llm.NewMockClient("").WithError(boom))

	_, _, err := llm.GenerateStructured(context.Background(), p, "intake", "p", 10, outlineFallback)
	assert.ErrorIs(t, err, boom)
}

func TestGenerateStructured_SumsUsage(t *testing.T) {
	calls := 0
	mock := llm.NewMockClient("").WithGenerateFunc(func(_ context.Context, _ llm.Request) (llm.Response, error) {
		calls++
		text := ""
		if calls == 2 {
			text = `{"ordered_sections": []}`
		}
		return llm.Response{Text: text, Usage: llm.Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7}}, nil
	})
	p := llm.NewPolicy(mock)

	_, out, err := llm.GenerateStructured(context.Background(), p, "outline_builder", "p", 10, outlineFallback)
	require.NoError(t, err)
	assert.Equal(t, llm.Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14}, out.Usage)
}

func TestGenerateText(t *testing.T) {
	t.Run("trims output", func(t *testing.T) {
		p := llm.NewPolicy(llm.NewMockClient("\n## Scope\n\nBody\n\n"))
		got, out, err := llm.GenerateText(context.Background(), p, "section_writer", "write", 1400, func() string { return "fb" })
		require.NoError(t, err)
		assert.Equal(t, "## Scope\n\nBody", got)
		assert.Equal(t, 1, out.Attempts)
	})

	t.Run("text retry prefix", func(t *testing.T) {
		mock := llm.NewMockClient("").WithResponses("", "content")
		p := llm.NewPolicy(mock)
		got, _, err := llm.GenerateText(context.Background(), p, "section_writer", "write", 1400, func() string { return "fb" })
		require.NoError(t, err)
		assert.Equal(t, "content", got)
		assert.True(t, strings.HasPrefix(mock.Calls[1].Prompt, "Return ONLY the requested content.\n\n"))
	})

	t.Run("fallback", func(t *testing.T) {
		p := llm.NewPolicy(llm.NewMockClient(" "))
		got, out, err := llm.GenerateText(context.Background(), p, "section_writer", "write", 1400, func() string { return "fb" })
		require.NoError(t, err)
		assert.Equal(t, "fb", got)
		assert.True(t, out.Fallback)
	})
}

func TestPolicy_NilClient(t *testing.T) {
	_, _, err := llm.GenerateText(context.Background(), llm.NewPolicy(nil), "s", "p", 1, func() string { return "" })
	assert.ErrorIs(t, err, llm.ErrNilClient)
}

func TestPolicy_ObservesGenerations(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	metrics := &recordingMetrics{}
	p := llm.NewPolicy(llm.NewMockClient(""), llm.WithPolicyLogger(logger), llm.WithPolicyMetrics(metrics))

	_, _, err := llm.GenerateText(context.Background(), p, "intake", "p", 1, func() string { return "" })
	require.NoError(t, err)

	require.Len(t, metrics.gens, 1)
	assert.Equal(t, "intake", metrics.gens[0].stage)
	assert.Equal(t, 2, metrics.gens[0].attempts)
	assert.True(t, metrics.gens[0].fallback)
	assert.Contains(t, buf.String(), "fallback")
}

// loggerCtx stands in for a flowgraph.Context carrying a node logger.
type loggerCtx struct {
	context.Context
	logger *slog.Logger
}

func (c loggerCtx) Logger() *slog.Logger { return c.logger }

func TestPolicy_UsesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := loggerCtx{
		Context: context.Background(),
		logger:  slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).With("node_id", "intake"),
	}
	p := llm.NewPolicy(llm.NewMockClient("ok"))

	_, _, err := llm.GenerateText(ctx, p, "intake", "p", 1, func() string { return "" })
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"node_id":"intake"`)
}

func TestPolicy_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, _, err := llm.GenerateText(ctx, llm.NewPolicy(llm.NewMockClient("x")), "s", "p", 1, func() string { return "" })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
