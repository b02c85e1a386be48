package main

import (
	"context"
	"fmt"

	"github.com/harmony-labs/meta-git-lib/internal/vcs"
	"github.com/harmony-labs/meta-git-lib/snapshot"
	"github.com/urfave/cli/v3"
)

func newSnapshotEngine(ws *workspace) *snapshot.Engine {
	git := vcs.New(logger.With("component", "vcs"))
	return snapshot.New(git, logger.With("component", "snapshot"), ws.Root)
}

func snapshotRepoRefs(ws *workspace) []snapshot.RepoRef {
	refs := []snapshot.RepoRef{{RelPath: ".", AbsPath: ws.Root}}
	for name, ref := range ws.Projects {
		refs = append(refs, snapshot.RepoRef{RelPath: name, AbsPath: ref.AbsolutePath})
	}
	return refs
}

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "capture and restore commit state across a workspace",
		Commands: []*cli.Command{
			snapshotSaveCommand(),
			snapshotRestoreCommand(),
			snapshotListCommand(),
			snapshotDeleteCommand(),
		},
	}
}

func snapshotSaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "capture sha/branch/dirty for every repo in the workspace",
		ArgsUsage: "NAME",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 1 {
				return fmt.Errorf("usage: meta snapshot save NAME")
			}
			ws, err := loadWorkspace(cmd.String("workspace"))
			if err != nil {
				return err
			}
			eng := newSnapshotEngine(ws)
			snap, err := eng.Capture(ctx, args[0], snapshotRepoRefs(ws))
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
}

func snapshotRestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "reapply a captured snapshot's commit state",
		ArgsUsage: "NAME",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 1 {
				return fmt.Errorf("usage: meta snapshot restore NAME")
			}
			ws, err := loadWorkspace(cmd.String("workspace"))
			if err != nil {
				return err
			}
			eng := newSnapshotEngine(ws)
			snap, err := eng.Load(args[0])
			if err != nil {
				return err
			}
			results := eng.Restore(ctx, snap, snapshotRepoRefs(ws))
			return printJSON(results)
		},
	}
}

func snapshotListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list snapshots newest-first",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ws, err := loadWorkspace(cmd.String("workspace"))
			if err != nil {
				return err
			}
			eng := newSnapshotEngine(ws)
			infos, err := eng.List()
			if err != nil {
				return err
			}
			return printJSON(infos)
		},
	}
}

func snapshotDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "remove a snapshot",
		ArgsUsage: "NAME",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 1 {
				return fmt.Errorf("usage: meta snapshot delete NAME")
			}
			ws, err := loadWorkspace(cmd.String("workspace"))
			if err != nil {
				return err
			}
			eng := newSnapshotEngine(ws)
			return eng.Delete(args[0])
		},
	}
}
