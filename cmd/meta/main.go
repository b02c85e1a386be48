// Command meta is the CLI entry point wiring the manifest, VCS driver,
// clone scheduler, worktree manager, snapshot engine, registry store and
// hook dispatcher together. It only parses flags and dispatches into those
// packages; no business logic lives here.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/harmony-labs/meta-git-lib/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

var (
	loggerLevel = new(slog.LevelVar)
	logger      *slog.Logger

	levelStrings = map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
)

func init() {
	loggerLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: loggerLevel}))
}

func main() {
	cmd := &cli.Command{
		Name:  "meta",
		Usage: "orchestrate clones, worktrees and snapshots across a multi-repository workspace",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level (debug, info, warn, error)",
				Sources: cli.EnvVars("META_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "workspace",
				Aliases: []string{"C"},
				Value:   ".",
				Usage:   "workspace directory to operate in",
				Sources: cli.EnvVars("META_WORKSPACE"),
			},
			&cli.StringFlag{
				Name:  "metrics-namespace",
				Value: "meta",
				Usage: "Prometheus metrics namespace",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Value: false,
				Usage: "enable Prometheus instrumentation for clone operations",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if lvl, ok := levelStrings[strings.ToLower(cmd.String("log-level"))]; ok {
				loggerLevel.Set(lvl)
			}
			if cmd.Bool("metrics") {
				metrics.Enable(cmd.String("metrics-namespace"), prometheus.DefaultRegisterer)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			cloneCommand(),
			worktreeCommand(),
			snapshotCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("exiting", "err", err)
		os.Exit(1)
	}
}
