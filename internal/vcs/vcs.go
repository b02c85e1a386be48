// Package vcs is the thin, well-defined contract this module holds over the
// external git binary: clone, worktree add/remove, status porcelain,
// ahead/behind, diff stat, rev-parse verify, stash and checkout. Every
// operation runs git as a child process in a given working directory and
// parses porcelain output so results are stable across locales. Nothing in
// this package decides policy (branch-to-use, whether to recurse); it only
// executes one git invocation and reports a structured result.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/harmony-labs/meta-git-lib/giturl"
	"github.com/harmony-labs/meta-git-lib/internal/utils"
)

// Git drives the git binary found on PATH (or at BinPath, if set).
type Git struct {
	BinPath string
	log     *slog.Logger
}

// New returns a Git driver that logs subprocess invocations through log.
func New(log *slog.Logger) *Git {
	return &Git{BinPath: "git", log: log}
}

func (g *Git) bin() string {
	if g.BinPath != "" {
		return g.BinPath
	}
	return "git"
}

func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	return utils.RunCommand(ctx, g.log, nil, dir, g.bin(), args...)
}

// Clone clones url into target. depth<=0 means a full clone. Before ever
// handing an SSH-form remote to the git subprocess, its host is validated
// via giturl.ExtractSSHHost/IsValidHostname; a remote with a malformed or
// password-embedded host is rejected without spawning git at all. Other
// schemes (https, file) are left to git itself to reject.
func (g *Git) Clone(ctx context.Context, url, target string, depth int) error {
	if giturl.IsSCPURL(url) || giturl.IsSSHURL(url) {
		if _, ok := giturl.ExtractSSHHost(url); !ok {
			return fmt.Errorf("refusing to clone %q: not a valid SSH remote host", url)
		}
	}

	args := []string{"clone"}
	if depth > 0 {
		args = append(args, "--depth", strconv.Itoa(depth))
	}
	args = append(args, url, target)
	_, err := g.run(ctx, "", args...)
	return err
}

// RevParseVerify reports whether ref resolves to a valid object in repoDir.
func (g *Git) RevParseVerify(ctx context.Context, repoDir, ref string) bool {
	_, err := g.run(ctx, repoDir, "rev-parse", "--verify", "--quiet", ref)
	return err == nil
}

// WorktreeAdd implements the branch resolution policy: an explicit fromRef
// always creates a new branch from that ref (after verifying it exists);
// otherwise a local branch of the same name is attached if it exists, else a
// tracking branch is created from origin/<branch> if that exists, else a new
// branch is created from HEAD. created reports whether a new branch was made.
func (g *Git) WorktreeAdd(ctx context.Context, repoDir, dest, branch, fromRef string) (created bool, err error) {
	if fromRef != "" {
		if !g.RevParseVerify(ctx, repoDir, fromRef) {
			return false, fmt.Errorf("from-ref %q does not exist in %s", fromRef, repoDir)
		}
		if _, err := g.run(ctx, repoDir, "worktree", "add", "-b", branch, dest, fromRef); err != nil {
			return false, err
		}
		return true, nil
	}

	localExists := g.RevParseVerify(ctx, repoDir, "refs/heads/"+branch)
	if localExists {
		if _, err := g.run(ctx, repoDir, "worktree", "add", dest, branch); err != nil {
			return false, err
		}
		return false, nil
	}

	remoteExists := g.RevParseVerify(ctx, repoDir, "refs/remotes/origin/"+branch)
	if remoteExists {
		if _, err := g.run(ctx, repoDir, "worktree", "add", "--track", "-b", branch, dest, "origin/"+branch); err != nil {
			return false, err
		}
		return true, nil
	}

	if _, err := g.run(ctx, repoDir, "worktree", "add", "-b", branch, dest); err != nil {
		return false, err
	}
	return true, nil
}

// WorktreeRemove removes the worktree at path from repoDir.
func (g *Git) WorktreeRemove(ctx context.Context, repoDir, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := g.run(ctx, repoDir, args...)
	return err
}

// StatusResult is the parsed result of `git status --porcelain`.
type StatusResult struct {
	Dirty          bool
	ModifiedFiles  []string
	UntrackedCount int
}

// StatusPorcelain parses `git status --porcelain` output for repoDir. Rename
// lines ("R  old -> new") expose the new path as the modified file.
func (g *Git) StatusPorcelain(ctx context.Context, repoDir string) (StatusResult, error) {
	out, err := g.run(ctx, repoDir, "status", "--porcelain")
	if err != nil {
		return StatusResult{}, err
	}

	var res StatusResult
	for _, line := range strings.Split(out, "\n") {
		// The command runner trims the whole output, which strips the
		// leading space of a first line such as " M file"; restore it.
		if len(line) >= 3 && line[1] == ' ' && line[2] != ' ' {
			line = " " + line
		}
		if len(line) < 3 {
			continue
		}
		status := line[:2]
		file := strings.TrimSpace(line[3:])

		if status == "??" {
			res.UntrackedCount++
			continue
		}
		if file == "" {
			continue
		}
		if idx := strings.LastIndex(file, " -> "); idx != -1 {
			file = file[idx+len(" -> "):]
		}
		res.ModifiedFiles = append(res.ModifiedFiles, file)
	}

	res.Dirty = len(res.ModifiedFiles) > 0 || res.UntrackedCount > 0
	return res, nil
}

// AheadBehind returns the ahead/behind commit counts against the upstream.
// A repo with no upstream configured returns (0,0) and no error.
func (g *Git) AheadBehind(ctx context.Context, repoDir string) (ahead, behind int, err error) {
	out, runErr := g.run(ctx, repoDir, "rev-list", "--left-right", "--count", "HEAD...@{upstream}")
	if runErr != nil {
		return 0, 0, nil
	}
	parts := strings.Fields(out)
	if len(parts) != 2 {
		return 0, 0, nil
	}
	ahead, aerr := strconv.Atoi(parts[0])
	behind, berr := strconv.Atoi(parts[1])
	if aerr != nil || berr != nil {
		return 0, 0, nil
	}
	return ahead, behind, nil
}

// DiffStat is the parsed result of `git diff --numstat`.
type DiffStat struct {
	FilesChanged int
	Insertions   int
	Deletions    int
	Files        []string
}

// DiffNumstat prefers the three-dot form (base...HEAD) and falls back to the
// two-dot form (base..HEAD) when that fails (e.g. base is an unrelated ref).
func (g *Git) DiffNumstat(ctx context.Context, repoDir, base string) (DiffStat, error) {
	out, err := g.run(ctx, repoDir, "diff", "--numstat", base+"...HEAD")
	if err != nil {
		out, err = g.run(ctx, repoDir, "diff", "--numstat", base+"..HEAD")
		if err != nil {
			return DiffStat{}, err
		}
	}

	var stat DiffStat
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		ins, _ := strconv.Atoi(fields[0])
		del, _ := strconv.Atoi(fields[1])
		stat.Insertions += ins
		stat.Deletions += del
		stat.Files = append(stat.Files, fields[2])
		stat.FilesChanged++
	}
	return stat, nil
}

// RemoteOriginURL returns the configured origin URL, or ok=false if none.
func (g *Git) RemoteOriginURL(ctx context.Context, repoDir string) (url string, ok bool) {
	out, err := g.run(ctx, repoDir, "remote", "get-url", "origin")
	if err != nil || strings.TrimSpace(out) == "" {
		return "", false
	}
	return strings.TrimSpace(out), true
}

// CurrentBranch returns the checked-out branch name, or ok=false when HEAD
// is detached.
func (g *Git) CurrentBranch(ctx context.Context, repoDir string) (branch string, ok bool) {
	out, err := g.run(ctx, repoDir, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil || strings.TrimSpace(out) == "" {
		return "", false
	}
	return strings.TrimSpace(out), true
}

// IsDirty reports whether repoDir has a dirty working tree. Errors reading
// status are treated as "not dirty" since callers use this opportunistically.
func (g *Git) IsDirty(ctx context.Context, repoDir string) bool {
	st, err := g.StatusPorcelain(ctx, repoDir)
	if err != nil {
		return false
	}
	return st.Dirty
}

// StashPush stashes the working tree with the given message.
func (g *Git) StashPush(ctx context.Context, repoDir, message string) error {
	_, err := g.run(ctx, repoDir, "stash", "push", "-m", message)
	return err
}

// Checkout checks out ref in repoDir.
func (g *Git) Checkout(ctx context.Context, repoDir, ref string) error {
	_, err := g.run(ctx, repoDir, "checkout", ref)
	return err
}

// CheckoutB creates (or resets) branch at ref and checks it out.
func (g *Git) CheckoutB(ctx context.Context, repoDir, branch, ref string) error {
	_, err := g.run(ctx, repoDir, "checkout", "-B", branch, ref)
	return err
}

// Fetch fetches branch from origin.
func (g *Git) Fetch(ctx context.Context, repoDir, branch string) error {
	_, err := g.run(ctx, repoDir, "fetch", "origin", branch)
	return err
}

// RevParseHEAD returns the SHA of HEAD.
func (g *Git) RevParseHEAD(ctx context.Context, repoDir string) (string, error) {
	out, err := g.run(ctx, repoDir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ErrUnknownRevision is returned (via errors.Is on the wrapped checkout
// error) when a checkout fails because the SHA no longer exists in the
// object database, as opposed to any other checkout failure.
var ErrUnknownRevision = errors.New("revision no longer exists")

// ClassifyCheckoutError inspects a checkout error's message for the
// substrings git uses when the requested commit is unreachable, and wraps it
// with ErrUnknownRevision when so. Other errors are returned unchanged.
func ClassifyCheckoutError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "did not match any") || strings.Contains(msg, "not a commit") ||
		strings.Contains(msg, "reference is not a tree") {
		return fmt.Errorf("%w: %s", ErrUnknownRevision, err)
	}
	return err
}
