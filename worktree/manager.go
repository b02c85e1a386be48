package worktree

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/harmony-labs/meta-git-lib/hooks"
	"github.com/harmony-labs/meta-git-lib/internal/vcs"
	"github.com/harmony-labs/meta-git-lib/metrics"
	"github.com/harmony-labs/meta-git-lib/registry"
)

// ErrNotFound is returned when a worktree context is looked up by a name
// that has no registry entry.
var ErrNotFound = fmt.Errorf("worktree not found")

// ErrUnknownAlias is returned when a repo spec names an alias not present
// in the workspace's resolved project sources.
var ErrUnknownAlias = fmt.Errorf("unknown repo alias")

// Manager drives worktree creation, teardown, pruning and status across the
// repositories participating in a workspace.
type Manager struct {
	Git          *vcs.Git
	Store        *registry.Store[Context]
	Hooks        *hooks.Dispatcher
	Log          *slog.Logger
	WorkspaceDir string
}

// New returns a Manager rooted at workspaceDir.
func New(git *vcs.Git, store *registry.Store[Context], dispatcher *hooks.Dispatcher, log *slog.Logger, workspaceDir string) *Manager {
	return &Manager{Git: git, Store: store, Hooks: dispatcher, Log: log, WorkspaceDir: workspaceDir}
}

// CreateOptions bundles Create's configuration inputs.
type CreateOptions struct {
	BranchFlag            string
	FromRef               string
	Ephemeral             bool
	TTLSeconds            *int64
	Custom                map[string]string
	HookCmds              map[string]string
	WorktreesDirOverride  string // manifest's worktrees_dir, if any
}

func dirNameForAlias(alias, workspaceDir string) string {
	if alias == "." {
		return filepath.Base(workspaceDir)
	}
	return alias
}

// Create validates name, resolves the worktree root, and for each repo spec
// ("alias" or "alias:branch") resolves the source repository via sources,
// determines the effective branch, and invokes the VCS worktree-add
// operation (which itself implements the branch resolution policy). On
// success it writes a Context to the registry and fires post-create.
func (m *Manager) Create(ctx context.Context, name string, specs []string, sources map[string]RepoSource, opts CreateOptions) (*Context, error) {
	if err := ValidateWorktreeName(name); err != nil {
		return nil, err
	}

	root := ResolveWorktreeRoot(m.WorkspaceDir, opts.WorktreesDirOverride)
	relName, err := filepath.Rel(m.WorkspaceDir, root)
	if err != nil || relName == "." || relName == "" {
		relName = filepath.Base(root)
	}
	if err := EnsureWorktreesInGitignore(m.WorkspaceDir, relName); err != nil {
		m.Log.Warn("unable to update .gitignore", "err", err)
	}

	contextRoot := filepath.Join(root, name)

	var repos []Repo
	for _, spec := range specs {
		alias, perBranch := ParseRepoSpec(spec)

		src, ok := sources[alias]
		if !ok {
			valid := make([]string, 0, len(sources))
			for a := range sources {
				valid = append(valid, a)
			}
			sort.Strings(valid)
			return nil, fmt.Errorf("%w: %q. Valid aliases: %v", ErrUnknownAlias, alias, valid)
		}

		branch := ResolveBranch(name, opts.BranchFlag, perBranch)
		dest := filepath.Join(contextRoot, dirNameForAlias(alias, m.WorkspaceDir))

		created, err := m.Git.WorktreeAdd(ctx, src.Path, dest, branch, opts.FromRef)
		if err != nil {
			return nil, fmt.Errorf("creating worktree for %q: %w", alias, err)
		}

		repos = append(repos, Repo{
			Alias:         alias,
			Branch:        branch,
			Path:          dest,
			SourcePath:    src.Path,
			CreatedBranch: created,
		})
	}

	wtCtx := Context{
		Name:       name,
		RootPath:   contextRoot,
		Repos:      repos,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		Ephemeral:  opts.Ephemeral,
		TTLSeconds: opts.TTLSeconds,
		Custom:     opts.Custom,
	}

	key := registry.CanonicalKey(contextRoot)
	if err := m.Store.Add(key, wtCtx); err != nil {
		return nil, fmt.Errorf("writing registry entry: %w", err)
	}
	m.syncMetrics()

	m.Hooks.Fire(ctx, opts.HookCmds, hooks.PostCreate, buildPostCreatePayload(wtCtx))

	return &wtCtx, nil
}

func buildPostCreatePayload(c Context) hooks.PostCreatePayload {
	repos := make([]hooks.CreatedRepo, 0, len(c.Repos))
	for _, r := range c.Repos {
		repos = append(repos, hooks.CreatedRepo{
			Alias:         r.Alias,
			Path:          r.Path,
			Branch:        r.Branch,
			CreatedBranch: r.CreatedBranch,
		})
	}
	return hooks.PostCreatePayload{
		Action:     "create",
		Name:       c.Name,
		Path:       c.RootPath,
		Repos:      repos,
		Ephemeral:  c.Ephemeral,
		TTLSeconds: c.TTLSeconds,
		Custom:     c.Custom,
	}
}

// FindByName returns the registry key and context for the worktree named
// name.
func (m *Manager) FindByName(name string) (key string, wtCtx Context, err error) {
	entries, err := m.Store.List()
	if err != nil {
		return "", Context{}, err
	}
	for k, c := range entries {
		if c.Name == name {
			return k, c, nil
		}
	}
	return "", Context{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// DestroyResult reports how many repo removals failed under force mode.
type DestroyResult struct {
	Failures int
}

// Destroy removes the worktree named name. Children (alias != ".") are
// removed before "." (the parent), since children live inside the parent's
// root and would be orphaned by removing it first. In non-force mode, the
// first failure aborts and is returned. In force mode, failures are logged
// and tallied, and traversal continues through every repo. On success,
// post-destroy fires with whatever hookCmds the caller resolved from the
// manifest.
func (m *Manager) Destroy(ctx context.Context, name string, force bool, hookCmds map[string]string) (DestroyResult, error) {
	key, wtCtx, err := m.FindByName(name)
	if err != nil {
		return DestroyResult{}, err
	}

	var result DestroyResult
	var dotRepo *Repo

	for i := range wtCtx.Repos {
		r := wtCtx.Repos[i]
		if r.Alias == "." {
			dotRepo = &wtCtx.Repos[i]
			continue
		}
		if err := m.Git.WorktreeRemove(ctx, r.SourcePath, r.Path, force); err != nil {
			if !force {
				return result, fmt.Errorf("removing worktree %q: %w", r.Alias, err)
			}
			m.Log.Warn("failed to remove worktree, continuing", "alias", r.Alias, "path", r.Path, "err", err)
			result.Failures++
		}
	}

	if dotRepo != nil {
		if err := m.Git.WorktreeRemove(ctx, dotRepo.SourcePath, dotRepo.Path, force); err != nil {
			if !force {
				return result, fmt.Errorf("removing worktree \".\": %w", err)
			}
			m.Log.Warn("failed to remove worktree, continuing", "alias", ".", "path", dotRepo.Path, "err", err)
			result.Failures++
		}
	}

	if err := m.Store.Remove(key); err != nil {
		return result, fmt.Errorf("removing registry entry: %w", err)
	}
	m.syncMetrics()

	m.Hooks.Fire(ctx, hookCmds, hooks.PostDestroy, hooks.PostDestroyPayload{
		Action: "destroy",
		Name:   wtCtx.Name,
		Path:   wtCtx.RootPath,
		Force:  force,
	})

	return result, nil
}

// List returns every registered worktree context.
func (m *Manager) List() (map[string]Context, error) {
	return m.Store.List()
}

// PruneResult reports what Prune evicted.
type PruneResult struct {
	Removed []hooks.PrunedEntry
}

// Prune scans the registry and evicts any entry whose on-disk root is
// missing or whose TTL has elapsed, removing the dead registry rows in a
// single batch lock cycle and firing post-prune with the evictee list.
func (m *Manager) Prune(ctx context.Context, hookCmds map[string]string) (PruneResult, error) {
	entries, err := m.Store.List()
	if err != nil {
		return PruneResult{}, err
	}

	now := time.Now().Unix()
	var keys []string
	var removed []hooks.PrunedEntry

	for key, wtCtx := range entries {
		reason := ""
		rootExists := pathExists(wtCtx.RootPath)

		switch {
		case !rootExists:
			reason = "missing"
		case wtCtx.TTLSeconds != nil:
			if remaining := registry.TTLRemaining(m.Log, wtCtx.CreatedAt, wtCtx.TTLSeconds, now); remaining != nil && *remaining <= 0 {
				reason = "expired"
			}
		}

		if reason == "" {
			continue
		}

		if reason == "expired" && rootExists {
			m.removeWorktreesOnDisk(ctx, wtCtx)
		}

		keys = append(keys, key)

		var age *int64
		if created, err := time.Parse(time.RFC3339, wtCtx.CreatedAt); err == nil {
			a := now - created.Unix()
			age = &a
		}

		removed = append(removed, hooks.PrunedEntry{
			Name:       wtCtx.Name,
			Path:       wtCtx.RootPath,
			Reason:     reason,
			AgeSeconds: age,
		})
	}

	if len(keys) > 0 {
		if err := m.Store.RemoveBatch(keys); err != nil {
			return PruneResult{}, fmt.Errorf("removing pruned registry entries: %w", err)
		}
		m.syncMetrics()
	}

	m.Hooks.Fire(ctx, hookCmds, hooks.PostPrune, hooks.PostPrunePayload{Action: "prune", Removed: removed})

	return PruneResult{Removed: removed}, nil
}

func (m *Manager) removeWorktreesOnDisk(ctx context.Context, wtCtx Context) {
	var dotRepo *Repo
	for i := range wtCtx.Repos {
		r := wtCtx.Repos[i]
		if r.Alias == "." {
			dotRepo = &wtCtx.Repos[i]
			continue
		}
		if err := m.Git.WorktreeRemove(ctx, r.SourcePath, r.Path, true); err != nil {
			m.Log.Warn("prune: failed to remove worktree", "alias", r.Alias, "path", r.Path, "err", err)
		}
	}
	if dotRepo != nil {
		if err := m.Git.WorktreeRemove(ctx, dotRepo.SourcePath, dotRepo.Path, true); err != nil {
			m.Log.Warn("prune: failed to remove worktree", "alias", ".", "path", dotRepo.Path, "err", err)
		}
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// syncMetrics reports the current registered-context count. Metrics are a
// no-op until metrics.Enable has been called, so this is safe to call
// unconditionally after every mutation.
func (m *Manager) syncMetrics() {
	entries, err := m.Store.List()
	if err != nil {
		m.Log.Warn("unable to refresh active-worktree-context metric", "err", err)
		return
	}
	metrics.SetActiveWorktreeContexts(len(entries))
}
