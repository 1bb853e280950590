// Command tsq is the CLI front end over the event-sourced task-tracker
// core: a thin adapter that parses arguments, builds a service.Service,
// and renders either human-readable text or the machine-readable output
// envelope. A rootOptions struct is populated by persistent flags, and
// each subcommand gets its own newXxxCmd constructor.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/misty-step/tsq/internal/envelope"
	"github.com/misty-step/tsq/internal/paths"
	"github.com/misty-step/tsq/internal/service"
	"github.com/misty-step/tsq/internal/tsqerr"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	Root          string
	JSON          bool
	Actor         string
	LogLevel      string
	LockTimeoutMS int
	ExactID       bool
}

type runtime struct {
	paths  paths.Dir
	svc    *service.Service
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(tsqerr.ExitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tsq",
		Short: "Local, event-sourced task tracker",
	}
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.PersistentFlags().StringVar(&opts.Root, "root", ".", "Repository root")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "Emit machine-readable output envelopes")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", envOrDefault("TSQ_ACTOR", ""), "Actor recorded on new events")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug|info|warn|error")
	cmd.PersistentFlags().IntVar(&opts.LockTimeoutMS, "lock-timeout-ms", envInt("TSQ_LOCK_TIMEOUT_MS", 0), "Lock acquisition deadline in milliseconds (0 = default)")
	cmd.PersistentFlags().BoolVar(&opts.ExactID, "exact-id", false, "Disable prefix matching for task ID arguments")

	cmd.AddCommand(newInitCmd(opts))
	cmd.AddCommand(newCreateCmd(opts))
	cmd.AddCommand(newUpdateCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newClaimCmd(opts))
	cmd.AddCommand(newNoteCmd(opts))
	cmd.AddCommand(newShowCmd(opts))
	cmd.AddCommand(newSupersedeCmd(opts))
	cmd.AddCommand(newMergeCmd(opts))
	cmd.AddCommand(newDepCmd(opts))
	cmd.AddCommand(newLinkCmd(opts))
	cmd.AddCommand(newSpecCmd(opts))
	cmd.AddCommand(newReadyCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newTreeCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newStaleCmd(opts))
	cmd.AddCommand(newRepairCmd(opts))

	return cmd
}

func buildRuntime(opts *rootOptions) (runtime, error) {
	p := paths.New(opts.Root)
	logger := newLogger(opts.LogLevel)
	svc := service.New(p, logger, opts.Actor, time.Now)
	if opts.LockTimeoutMS > 0 {
		svc.LockTimeout = time.Duration(opts.LockTimeoutMS) * time.Millisecond
	}
	return runtime{paths: p, svc: svc, logger: logger}, nil
}

func newLogger(level string) *slog.Logger {
	logLevel := new(slog.LevelVar)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "warn":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}

// finish renders the result of a command and exits the process with the
// exit code matching err's category (0 on success). It never returns,
// matching the output envelope's contract of one full response per
// invocation.
func finish(opts *rootOptions, command string, data any, renderHuman func(any), err error) {
	if opts.JSON {
		if err != nil {
			_ = envelope.WriteError(os.Stdout, command, err)
		} else {
			_ = envelope.WriteSuccess(os.Stdout, command, data)
		}
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
	} else if renderHuman != nil {
		renderHuman(data)
	}
	os.Exit(tsqerr.ExitCodeFor(err))
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
