package snapshot

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harmony-labs/meta-git-lib/internal/vcs"
)

func mustExec(t *testing.T, dir, name string, args ...string) string {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %v (dir=%s): %v\n%s", name, args, dir, err, out)
	}
	return strings.TrimSpace(string(out))
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mustExec(t, dir, "git", "init", "-q", "-b", "main")
	mustExec(t, dir, "git", "config", "user.email", "test@example.com")
	mustExec(t, dir, "git", "config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("v1\n"), 0o644); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}
	mustExec(t, dir, "git", "add", "README.md")
	mustExec(t, dir, "git", "commit", "-q", "-m", "v1")
	return dir
}

func newTestEngine(t *testing.T, workspace string) *Engine {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return New(vcs.New(log), log, workspace)
}

func TestCaptureAndRestoreCleanWorkspace(t *testing.T) {
	repo := initRepo(t)
	workspace := filepath.Dir(repo) // snapshot dir lives alongside the repo
	eng := newTestEngine(t, workspace)

	ctx := context.Background()
	refs := []RepoRef{{RelPath: "repo", AbsPath: repo}}

	snap, err := eng.Capture(ctx, "snap-1", refs)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	state := snap.Repos["repo"]
	if state.Branch != "main" || state.Dirty {
		t.Errorf("unexpected captured state: %+v", state)
	}

	// advance history
	if err := os.WriteFile(filepath.Join(repo, "README.md"), []byte("v2\n"), 0o644); err != nil {
		t.Fatalf("writing v2: %v", err)
	}
	mustExec(t, repo, "git", "commit", "-q", "-am", "v2")

	results := eng.Restore(ctx, snap, refs)
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("Restore failed: %+v", results)
	}

	body, err := os.ReadFile(filepath.Join(repo, "README.md"))
	if err != nil {
		t.Fatalf("reading restored file: %v", err)
	}
	if string(body) != "v1\n" {
		t.Errorf("restore did not roll back content, got %q", body)
	}
}

func TestRestoreStashesDirtyWorkingTree(t *testing.T) {
	repo := initRepo(t)
	workspace := filepath.Dir(repo)
	eng := newTestEngine(t, workspace)
	ctx := context.Background()
	refs := []RepoRef{{RelPath: "repo", AbsPath: repo}}

	snap, err := eng.Capture(ctx, "snap-2", refs)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if err := os.WriteFile(filepath.Join(repo, "untracked.txt"), []byte("scratch\n"), 0o644); err != nil {
		t.Fatalf("writing untracked file: %v", err)
	}
	mustExec(t, repo, "git", "add", "untracked.txt")
	// leave it staged-but-uncommitted so the repo is dirty at restore time

	results := eng.Restore(ctx, snap, refs)
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if !results[0].Stashed {
		t.Errorf("expected the dirty working tree to be auto-stashed, got %+v", results[0])
	}
	if !results[0].Success {
		t.Errorf("restore should succeed after stashing, got %+v", results[0])
	}
}

func TestListAndDelete(t *testing.T) {
	repo := initRepo(t)
	workspace := filepath.Dir(repo)
	eng := newTestEngine(t, workspace)
	ctx := context.Background()
	refs := []RepoRef{{RelPath: "repo", AbsPath: repo}}

	if _, err := eng.Capture(ctx, "alpha", refs); err != nil {
		t.Fatalf("Capture alpha: %v", err)
	}
	if _, err := eng.Capture(ctx, "beta", refs); err != nil {
		t.Fatalf("Capture beta: %v", err)
	}

	infos, err := eng.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(infos))
	}

	if err := eng.Delete("alpha"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	infos, err = eng.List()
	if err != nil {
		t.Fatalf("List after delete: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "beta" {
		t.Fatalf("expected only beta to remain, got %+v", infos)
	}
}

func TestRestoreUnreachableSHA(t *testing.T) {
	repo := initRepo(t)
	workspace := filepath.Dir(repo)
	eng := newTestEngine(t, workspace)
	refs := []RepoRef{{RelPath: "repo", AbsPath: repo}}

	snap := &Snapshot{
		Name:  "bogus",
		Repos: map[string]RepoState{"repo": {SHA: "0000000000000000000000000000000000000000", Branch: "main"}},
	}

	results := eng.Restore(context.Background(), snap, refs)
	if len(results) != 1 || results[0].Success {
		t.Fatalf("expected a failed restore for an unreachable SHA, got %+v", results)
	}
	if !strings.Contains(results[0].Message, "no longer exists") {
		t.Errorf("expected message to mention the SHA no longer exists, got %q", results[0].Message)
	}
}
