package worktree

import (
	"context"
	"fmt"

	"github.com/harmony-labs/meta-git-lib/internal/vcs"
)

// RepoStatus is one repo's status within a worktree context.
type RepoStatus struct {
	Alias          string `json:"alias"`
	Branch         string `json:"branch"`
	Dirty          bool   `json:"dirty"`
	ModifiedFiles  []string `json:"modified_files,omitempty"`
	UntrackedCount int    `json:"untracked_count"`
	Ahead          int    `json:"ahead"`
	Behind         int    `json:"behind"`
	Err            string `json:"error,omitempty"`
}

// Status reports status for every repo participating in the worktree
// context named name. A per-repo git failure is recorded in that repo's
// Err field rather than aborting the whole aggregation, so one broken
// worktree never hides the status of its siblings.
func (m *Manager) Status(ctx context.Context, name string) ([]RepoStatus, error) {
	_, wtCtx, err := m.FindByName(name)
	if err != nil {
		return nil, err
	}

	out := make([]RepoStatus, 0, len(wtCtx.Repos))
	for _, r := range wtCtx.Repos {
		rs := RepoStatus{Alias: r.Alias, Branch: r.Branch}

		sres, err := m.Git.StatusPorcelain(ctx, r.Path)
		if err != nil {
			rs.Err = err.Error()
			out = append(out, rs)
			continue
		}
		rs.Dirty = sres.Dirty
		rs.ModifiedFiles = sres.ModifiedFiles
		rs.UntrackedCount = sres.UntrackedCount

		ahead, behind, err := m.Git.AheadBehind(ctx, r.Path)
		if err != nil {
			rs.Err = err.Error()
			out = append(out, rs)
			continue
		}
		rs.Ahead = ahead
		rs.Behind = behind

		out = append(out, rs)
	}
	return out, nil
}

// RepoDiff is one repo's diffstat within a worktree context, relative to
// base (a ref such as "@{upstream}", the CLI's default).
type RepoDiff struct {
	Alias string       `json:"alias"`
	Stat  vcs.DiffStat `json:"stat"`
	Err   string       `json:"error,omitempty"`
}

// Diff reports a numstat-style diff for every repo in the worktree context
// named name, against base.
func (m *Manager) Diff(ctx context.Context, name, base string) ([]RepoDiff, error) {
	_, wtCtx, err := m.FindByName(name)
	if err != nil {
		return nil, err
	}

	out := make([]RepoDiff, 0, len(wtCtx.Repos))
	for _, r := range wtCtx.Repos {
		rd := RepoDiff{Alias: r.Alias}
		stat, err := m.Git.DiffNumstat(ctx, r.Path, base)
		if err != nil {
			rd.Err = fmt.Errorf("diff for %q: %w", r.Alias, err).Error()
			out = append(out, rd)
			continue
		}
		rd.Stat = stat
		out = append(out, rd)
	}
	return out, nil
}
