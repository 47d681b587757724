package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/randalmurphal/brdflow/pkg/brd"
	"github.com/randalmurphal/brdflow/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/brdflow/pkg/flowgraph/config"
	"github.com/randalmurphal/brdflow/pkg/human"
	"github.com/randalmurphal/brdflow/pkg/llm"
)

var errNoDurableStore = errors.New("resume needs a durable checkpoint store: set --checkpoint-sqlite or --checkpoint-redis")

// openStore picks the checkpoint backend: SQLite, then Redis, then memory.
// durable reports whether checkpoints outlive the process.
func openStore(c config.CheckpointSettings) (store checkpoint.Store, durable bool, err error) {
	switch {
	case c.SQLitePath != "":
		s, err := checkpoint.NewSQLiteStore(c.SQLitePath)
		if err != nil {
			return nil, false, fmt.Errorf("open sqlite checkpoints: %w", err)
		}
		return s, true, nil
	case c.RedisAddr != "":
		var opts []checkpoint.RedisOption
		if c.TTL > 0 {
			opts = append(opts, checkpoint.WithRedisTTL(c.TTL))
		}
		return checkpoint.NewRedisStore(c.RedisAddr, c.RedisPassword, c.RedisDB, opts...), true, nil
	default:
		return checkpoint.NewMemoryStore(), false, nil
	}
}

// newClient builds the generation backend. offline swaps in a client that
// never answers, so every stage takes its fallback.
func newClient(s config.LLMSettings, offline bool, logger *slog.Logger) llm.Client {
	if offline {
		return llm.NewMockClient("")
	}

	opts := []llm.OpenAIOption{
		llm.WithRequestTimeout(s.Timeout),
		llm.WithClientLogger(logger),
	}
	if s.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(s.BaseURL))
	}
	if s.APIKey != "" {
		opts = append(opts, llm.WithAPIKey(s.APIKey))
	}
	if s.RequestsPerMinute > 0 {
		opts = append(opts, llm.WithRequestsPerMinute(s.RequestsPerMinute))
	}
	if s.AuthURL != "" {
		opts = append(opts, llm.WithTokenSource(llm.NewTokenSource(s.AuthURL, s.ClientID, s.ClientSecret, nil)))
	} else if s.APIKey == "" {
		logger.Warn("no API key or auth URL configured, requests are sent without credentials")
	}
	return llm.NewOpenAIClient(s.Model, opts...)
}

// newPrompter uses terminal forms when stdin is a terminal.
func (a *app) newPrompter() human.Prompter {
	if f, ok := a.streams.in.(*os.File); ok {
		return human.Interactive(f, a.streams.out)
	}
	return human.NewLinePrompter(a.streams.in, a.streams.out)
}

func (a *app) newPipeline(client llm.Client, tel *telemetry) *brd.Pipeline {
	p := a.settings.Pipeline
	return brd.New(client, a.newPrompter(),
		brd.WithSectionConcurrency(p.SectionConcurrency),
		brd.WithGapLoopLimit(p.GapLoopLimit),
		brd.WithReviewLoopLimit(p.ReviewLoopLimit),
		brd.WithMetrics(tel.metrics),
	)
}
