package main

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/brdflow/pkg/flowgraph"
	"github.com/randalmurphal/brdflow/pkg/flowgraph/checkpoint"
)

func newResumeCmd(a *app) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "resume [RUN_ID]",
		Short: "Continue a checkpointed run, or list resumable runs",
		Long:  `Without a run ID, resume lists the runs in the checkpoint store with the stage each would continue from.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.listRuns()
			}
			return a.resume(cmd.Context(), args[0], offline)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the model; every remaining stage uses its fallback")
	return cmd
}

func (a *app) listRuns() error {
	store, durable, err := openStore(a.settings.Checkpoint)
	if err != nil {
		return err
	}
	defer store.Close()
	if !durable {
		return errNoDurableStore
	}

	runs, err := store.Runs()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	tw := tabwriter.NewWriter(a.streams.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tLAST STAGE\tNEXT STAGE\tSAVED")
	for _, id := range runs {
		cp, err := checkpoint.Latest(store, id)
		if err != nil {
			a.logger.Warn("skipping unreadable run", slog.String("run_id", id), slog.String("error", err.Error()))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, cp.NodeID, cp.NextNode, cp.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func (a *app) resume(ctx context.Context, runID string, offline bool) error {
	if err := a.settings.Validate(); err != nil {
		return err
	}
	logger := a.logger.With(slog.String("command", "resume"))

	store, durable, err := openStore(a.settings.Checkpoint)
	if err != nil {
		return err
	}
	defer store.Close()
	if !durable {
		return errNoDurableStore
	}

	tel, err := setupTelemetry(a.settings.Telemetry, a.streams.err, logger)
	if err != nil {
		return err
	}
	defer func() { _ = tel.shutdown(context.Background()) }()

	pipeline := a.newPipeline(newClient(a.settings.LLM, offline, logger), tel)
	fgCtx := flowgraph.NewContext(ctx, flowgraph.WithLogger(logger), flowgraph.WithContextRunID(runID))

	result, err := pipeline.Resume(fgCtx, store, runID, flowgraph.WithTracing(tel.tracing))
	if err != nil {
		return err
	}

	a.report(result, runID)
	return nil
}
