package main

import (
	"context"
	"fmt"

	"github.com/harmony-labs/meta-git-lib/clonequeue"
	"github.com/harmony-labs/meta-git-lib/internal/vcs"
	"github.com/urfave/cli/v3"
)

func cloneCommand() *cli.Command {
	return &cli.Command{
		Name:  "clone",
		Usage: "clone every project declared by the workspace manifest, recursing into nested meta-projects",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Value: 4, Usage: "number of concurrent clone workers"},
			&cli.IntFlag{Name: "depth", Value: 0, Usage: "git clone --depth; 0 means full clone"},
			&cli.IntFlag{Name: "meta-depth", Value: -1, Usage: "recursion limit for nested meta-projects; negative means unlimited"},
			&cli.BoolFlag{Name: "dry-run", Usage: "print the repos that would be cloned without cloning them"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ws, err := loadWorkspace(cmd.String("workspace"))
			if err != nil {
				return err
			}

			git := vcs.New(logger.With("component", "vcs"))
			q := clonequeue.New(logger.With("component", "clonequeue"), cmd.Int("depth"), cmd.Int("meta-depth"))
			q.Git = git
			q.PushFromMeta(ctx, ws.Root, 0)

			if cmd.Bool("dry-run") {
				return printJSON(q.DrainAll())
			}

			sched := &clonequeue.Scheduler{
				Queue:  q,
				Cloner: git,
				Log:    logger.With("component", "scheduler"),
			}
			sched.Run(ctx, cmd.Int("workers"))

			completed, discovered := q.Counts()
			failed := q.Failed()
			logger.Info("clone finished", "completed", completed, "discovered", discovered, "failed", len(failed))
			if len(failed) > 0 {
				return fmt.Errorf("%d repositories failed to clone: %v", len(failed), failed)
			}
			return nil
		},
	}
}
