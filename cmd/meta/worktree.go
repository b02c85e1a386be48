package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harmony-labs/meta-git-lib/hooks"
	"github.com/harmony-labs/meta-git-lib/internal/vcs"
	"github.com/harmony-labs/meta-git-lib/registry"
	"github.com/harmony-labs/meta-git-lib/worktree"
	"github.com/urfave/cli/v3"
)

func registryPath() (string, error) {
	dir, err := registry.DefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "worktrees.json"), nil
}

func newWorktreeManager(ws *workspace) (*worktree.Manager, error) {
	path, err := registryPath()
	if err != nil {
		return nil, err
	}
	store := registry.NewStore[worktree.Context](path)
	git := vcs.New(logger.With("component", "vcs"))
	dispatcher := &hooks.Dispatcher{Log: logger.With("component", "hooks")}
	return worktree.New(git, store, dispatcher, logger.With("component", "worktree"), ws.Root), nil
}

func resolveSources(ws *workspace) map[string]worktree.RepoSource {
	sources := map[string]worktree.RepoSource{
		".": {Alias: ".", Path: ws.Root},
	}
	for name, ref := range ws.Projects {
		sources[name] = worktree.RepoSource{Alias: name, Path: ref.AbsolutePath}
	}
	return sources
}

func hookCmdsFor(ws *workspace) map[string]string {
	if ws.RootManifest.Worktree.Hooks == nil {
		return nil
	}
	return ws.RootManifest.Worktree.Hooks
}

func worktreeCommand() *cli.Command {
	return &cli.Command{
		Name:  "worktree",
		Usage: "manage coherent branch contexts spanning multiple repositories",
		Commands: []*cli.Command{
			worktreeCreateCommand(),
			worktreeDestroyCommand(),
			worktreePruneCommand(),
			worktreeStatusCommand(),
			worktreeDiffCommand(),
			worktreeListCommand(),
		},
	}
}

func worktreeCreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "create a worktree context spanning the given repos",
		ArgsUsage: "NAME REPO[:BRANCH] [REPO[:BRANCH] ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "branch", Usage: "branch name applied to every repo lacking a per-repo branch"},
			&cli.StringFlag{Name: "from-ref", Usage: "base ref to branch from; forces creation of a new branch"},
			&cli.BoolFlag{Name: "ephemeral", Usage: "mark this worktree as ephemeral"},
			&cli.StringFlag{Name: "ttl", Usage: "time-to-live for this worktree, e.g. 2h, 3d"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) < 2 {
				return fmt.Errorf("usage: meta worktree create NAME REPO[:BRANCH] [REPO[:BRANCH] ...]")
			}
			name, specs := args[0], args[1:]

			ws, err := loadWorkspace(cmd.String("workspace"))
			if err != nil {
				return err
			}
			mgr, err := newWorktreeManager(ws)
			if err != nil {
				return err
			}

			var ttlSeconds *int64
			if ttl := cmd.String("ttl"); ttl != "" {
				secs, err := worktree.ParseDuration(ttl)
				if err != nil {
					return err
				}
				ttlSeconds = &secs
			}

			wtCtx, err := mgr.Create(ctx, name, specs, resolveSources(ws), worktree.CreateOptions{
				BranchFlag:           cmd.String("branch"),
				FromRef:              cmd.String("from-ref"),
				Ephemeral:            cmd.Bool("ephemeral"),
				TTLSeconds:           ttlSeconds,
				HookCmds:             hookCmdsFor(ws),
				WorktreesDirOverride: ws.RootManifest.WorktreesDir,
			})
			if err != nil {
				return err
			}

			return printJSON(wtCtx)
		},
	}
}

func worktreeDestroyCommand() *cli.Command {
	return &cli.Command{
		Name:      "destroy",
		Usage:     "remove a worktree context",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "continue past per-repo removal failures"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 1 {
				return fmt.Errorf("usage: meta worktree destroy NAME")
			}

			ws, err := loadWorkspace(cmd.String("workspace"))
			if err != nil {
				return err
			}
			mgr, err := newWorktreeManager(ws)
			if err != nil {
				return err
			}

			result, err := mgr.Destroy(ctx, args[0], cmd.Bool("force"), hookCmdsFor(ws))
			if err != nil {
				return err
			}
			if result.Failures > 0 {
				fmt.Fprintf(os.Stderr, "destroyed with %d repo removal failures\n", result.Failures)
			}
			return nil
		},
	}
}

func worktreePruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "evict worktree contexts whose root is missing or whose TTL has elapsed",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ws, err := loadWorkspace(cmd.String("workspace"))
			if err != nil {
				return err
			}
			mgr, err := newWorktreeManager(ws)
			if err != nil {
				return err
			}
			result, err := mgr.Prune(ctx, hookCmdsFor(ws))
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func worktreeStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "report git status for every repo in a worktree context",
		ArgsUsage: "NAME",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 1 {
				return fmt.Errorf("usage: meta worktree status NAME")
			}
			ws, err := loadWorkspace(cmd.String("workspace"))
			if err != nil {
				return err
			}
			mgr, err := newWorktreeManager(ws)
			if err != nil {
				return err
			}
			statuses, err := mgr.Status(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(statuses)
		},
	}
}

func worktreeDiffCommand() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "report a diffstat for every repo in a worktree context",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base", Value: "@{upstream}", Usage: "base ref to diff against"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 1 {
				return fmt.Errorf("usage: meta worktree diff NAME")
			}
			ws, err := loadWorkspace(cmd.String("workspace"))
			if err != nil {
				return err
			}
			mgr, err := newWorktreeManager(ws)
			if err != nil {
				return err
			}
			diffs, err := mgr.Diff(ctx, args[0], cmd.String("base"))
			if err != nil {
				return err
			}
			return printJSON(diffs)
		},
	}
}

// listEntry is a worktree context annotated with its human-readable
// TTL-remaining, since the registry only stores the raw ttl_seconds and
// created_at pair.
type listEntry struct {
	worktree.Context
	TTLRemaining string `json:"ttl_remaining,omitempty"`
}

func worktreeListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list every registered worktree context",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ws, err := loadWorkspace(cmd.String("workspace"))
			if err != nil {
				return err
			}
			mgr, err := newWorktreeManager(ws)
			if err != nil {
				return err
			}
			entries, err := mgr.List()
			if err != nil {
				return err
			}

			now := time.Now().Unix()
			out := make(map[string]listEntry, len(entries))
			for key, wtCtx := range entries {
				le := listEntry{Context: wtCtx}
				if remaining := registry.TTLRemaining(mgr.Log, wtCtx.CreatedAt, wtCtx.TTLSeconds, now); remaining != nil {
					le.TTLRemaining = worktree.FormatDuration(*remaining)
				}
				out[key] = le
			}
			return printJSON(out)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
