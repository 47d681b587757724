package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/brdflow/pkg/flowgraph/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// app is the state shared by every subcommand after flag parsing.
type app struct {
	streams  streams
	getenv   func(string) string
	settings config.Settings
	logger   *slog.Logger
}

func execute(ctx context.Context, args []string, s streams, getenv func(string) string) int {
	root := newRootCmd(s, getenv)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(s.err, "Error:", err)
	return exitCode(err)
}

func newRootCmd(s streams, getenv func(string) string) *cobra.Command {
	a := &app{streams: s, getenv: getenv}

	root := &cobra.Command{
		Use:           "brdflow",
		Short:         "Generate business requirements documents from source material",
		Long:          `brdflow reads transcripts and documents, extracts evidenced facts, checks them against a BRD template, and drafts the document with a person reviewing the gaps and the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.SetIn(s.in)
	root.SetOut(s.out)
	root.SetErr(s.err)

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML or JSON settings file")
	pf.String("env-file", ".env", "dotenv file loaded before reading the environment")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("checkpoint-sqlite", "", "SQLite file for checkpoints")
	pf.String("checkpoint-redis", "", "Redis address for checkpoints")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address")
	pf.Bool("trace", false, "write OpenTelemetry spans to stderr")

	root.AddCommand(
		newRunCmd(a),
		newResumeCmd(a),
		newSectionsCmd(),
		newVersionCmd(),
	)
	return root
}

// init loads the env file and settings, applies persistent flags and
// builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	flags := cmd.Flags()

	envFile, _ := flags.GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	path, _ := flags.GetString("config")
	settings, err := config.LoadSettings(path, a.getenv)
	if err != nil {
		return err
	}

	if flags.Changed("log-level") {
		lvl, _ := flags.GetString("log-level")
		settings.LogLevel = strings.ToLower(lvl)
	}
	if flags.Changed("checkpoint-sqlite") {
		settings.Checkpoint.SQLitePath, _ = flags.GetString("checkpoint-sqlite")
	}
	if flags.Changed("checkpoint-redis") {
		settings.Checkpoint.RedisAddr, _ = flags.GetString("checkpoint-redis")
	}
	if flags.Changed("metrics-addr") {
		settings.Telemetry.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("trace") {
		settings.Telemetry.Trace, _ = flags.GetBool("trace")
	}

	a.settings = settings
	a.logger = newLogger(a.streams.err, settings.LogLevel)
	return nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == "error" {
				attr.Key = "err"
			}
			return attr
		},
	}))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the brdflow version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "brdflow version %s\n", version)
		},
	}
}
