// Package snapshot captures and restores a workspace's commit state: for
// each participating repo, the SHA at HEAD, the checked-out branch (if any)
// and whether the working tree was dirty. Snapshots are plain JSON files
// under <workspace>/.meta-snapshots/<name>.json; there is no registry or
// locking involved since each file is addressed directly by name.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harmony-labs/meta-git-lib/internal/vcs"
)

// RepoState is the captured state of a single repo.
type RepoState struct {
	SHA    string `json:"sha"`
	Branch string `json:"branch,omitempty"`
	Dirty  bool   `json:"dirty"`
}

// Snapshot is the full captured state of a workspace at a point in time.
type Snapshot struct {
	Name      string               `json:"name"`
	CreatedAt string               `json:"created_at"` // RFC3339
	Repos     map[string]RepoState `json:"repos"`       // keyed by relative path
}

// Engine captures and restores Snapshots against <workspaceDir>/.meta-snapshots.
type Engine struct {
	Git          *vcs.Git
	Log          *slog.Logger
	WorkspaceDir string
}

// New returns a snapshot Engine rooted at workspaceDir.
func New(git *vcs.Git, log *slog.Logger, workspaceDir string) *Engine {
	return &Engine{Git: git, Log: log, WorkspaceDir: workspaceDir}
}

func (e *Engine) dir() string {
	return filepath.Join(e.WorkspaceDir, ".meta-snapshots")
}

func (e *Engine) path(name string) string {
	return filepath.Join(e.dir(), name+".json")
}

// RepoRef is one repo participating in a capture or restore, identified by
// its relative path within the workspace and its absolute filesystem path.
type RepoRef struct {
	RelPath string
	AbsPath string
}

// Capture records sha/branch/dirty for every repo in repos and writes the
// result to <workspace>/.meta-snapshots/<name>.json.
func (e *Engine) Capture(ctx context.Context, name string, repos []RepoRef) (*Snapshot, error) {
	snap := &Snapshot{
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Repos:     make(map[string]RepoState, len(repos)),
	}

	for _, r := range repos {
		sha, err := e.Git.RevParseHEAD(ctx, r.AbsPath)
		if err != nil {
			return nil, fmt.Errorf("capturing %q: %w", r.RelPath, err)
		}
		branch, _ := e.Git.CurrentBranch(ctx, r.AbsPath)
		dirty := e.Git.IsDirty(ctx, r.AbsPath)

		snap.Repos[r.RelPath] = RepoState{SHA: sha, Branch: branch, Dirty: dirty}
	}

	if err := os.MkdirAll(e.dir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := os.WriteFile(e.path(name), body, 0o644); err != nil {
		return nil, fmt.Errorf("writing snapshot file: %w", err)
	}

	return snap, nil
}

// Load reads the named snapshot from disk.
func (e *Engine) Load(name string) (*Snapshot, error) {
	body, err := os.ReadFile(e.path(name))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %q: %w", name, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %q: %w", name, err)
	}
	return &snap, nil
}

// RestoreResult is one repo's outcome from Restore.
type RestoreResult struct {
	RelPath string `json:"repo"`
	Success bool   `json:"success"`
	Stashed bool   `json:"stashed"`
	Message string `json:"message"`
}

// Restore reapplies a snapshot's captured state across repos. For each repo:
// a dirty working tree is auto-stashed before checkout; a checkout failure
// whose stderr indicates the SHA no longer exists is reported without any
// reflog recovery attempt; a captured branch is reattached with
// checkout -B, non-fatally, after landing on the SHA. No single repo's
// failure aborts the others.
func (e *Engine) Restore(ctx context.Context, snap *Snapshot, repos []RepoRef) []RestoreResult {
	results := make([]RestoreResult, 0, len(repos))

	for _, r := range repos {
		state, ok := snap.Repos[r.RelPath]
		if !ok {
			results = append(results, RestoreResult{
				RelPath: r.RelPath,
				Success: false,
				Message: "no captured state for this repo in the snapshot",
			})
			continue
		}
		results = append(results, e.restoreOne(ctx, r, state))
	}

	return results
}

func (e *Engine) restoreOne(ctx context.Context, r RepoRef, state RepoState) RestoreResult {
	result := RestoreResult{RelPath: r.RelPath}

	if e.Git.IsDirty(ctx, r.AbsPath) {
		if err := e.Git.StashPush(ctx, r.AbsPath, "meta-snapshot-auto-stash"); err != nil {
			result.Message = fmt.Sprintf("auto-stash failed: %s", err)
			return result
		}
		result.Stashed = true
	}

	if err := e.Git.Checkout(ctx, r.AbsPath, state.SHA); err != nil {
		classified := vcs.ClassifyCheckoutError(err)
		if errors.Is(classified, vcs.ErrUnknownRevision) {
			result.Message = fmt.Sprintf("SHA %s no longer exists; check reflog", state.SHA)
			return result
		}
		result.Message = fmt.Sprintf("checkout failed: %s", err)
		return result
	}

	if state.Branch != "" {
		if err := e.Git.CheckoutB(ctx, r.AbsPath, state.Branch, state.SHA); err != nil {
			result.Success = true
			result.Message = fmt.Sprintf("restored to %s but could not reattach branch %q: %s", state.SHA, state.Branch, err)
			return result
		}
	}

	result.Success = true
	result.Message = fmt.Sprintf("restored to %s", state.SHA)
	return result
}

// Info is list metadata for one snapshot.
type Info struct {
	Name       string `json:"name"`
	CreatedAt  string `json:"created_at"`
	RepoCount  int    `json:"repo_count"`
	DirtyCount int    `json:"dirty_count"`
}

// List returns metadata for every snapshot under the workspace's
// .meta-snapshots directory, sorted newest-first by created_at.
func (e *Engine) List() ([]Info, error) {
	entries, err := os.ReadDir(e.dir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot directory: %w", err)
	}

	var infos []Info
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(ent.Name(), ".json")
		snap, err := e.Load(name)
		if err != nil {
			e.Log.Warn("skipping unreadable snapshot", "name", name, "err", err)
			continue
		}
		dirty := 0
		for _, rs := range snap.Repos {
			if rs.Dirty {
				dirty++
			}
		}
		infos = append(infos, Info{
			Name:       snap.Name,
			CreatedAt:  snap.CreatedAt,
			RepoCount:  len(snap.Repos),
			DirtyCount: dirty,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt > infos[j].CreatedAt
	})

	return infos, nil
}

// Delete removes the named snapshot file.
func (e *Engine) Delete(name string) error {
	if err := os.Remove(e.path(name)); err != nil {
		return fmt.Errorf("deleting snapshot %q: %w", name, err)
	}
	return nil
}
