package vcs

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
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
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}
	mustExec(t, dir, "git", "add", "README.md")
	mustExec(t, dir, "git", "commit", "-q", "-m", "initial commit")
	return dir
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestWorktreeAddNewBranchFromHEAD(t *testing.T) {
	repo := initRepo(t)
	git := New(testLogger())

	dest := filepath.Join(t.TempDir(), "wt")
	created, err := git.WorktreeAdd(context.Background(), repo, dest, "feature-x", "")
	if err != nil {
		t.Fatalf("WorktreeAdd: %v", err)
	}
	if !created {
		t.Errorf("expected a new branch to be created")
	}
	if _, err := os.Stat(filepath.Join(dest, "README.md")); err != nil {
		t.Errorf("expected worktree to contain checked-out files: %v", err)
	}
}

func TestWorktreeAddAttachesExistingLocalBranch(t *testing.T) {
	repo := initRepo(t)
	mustExec(t, repo, "git", "branch", "existing-branch")
	git := New(testLogger())

	dest := filepath.Join(t.TempDir(), "wt")
	created, err := git.WorktreeAdd(context.Background(), repo, dest, "existing-branch", "")
	if err != nil {
		t.Fatalf("WorktreeAdd: %v", err)
	}
	if created {
		t.Errorf("attaching an existing local branch should not report created=true")
	}
}

func TestWorktreeAddFromExplicitRef(t *testing.T) {
	repo := initRepo(t)
	sha := mustExec(t, repo, "git", "rev-parse", "HEAD")
	git := New(testLogger())

	dest := filepath.Join(t.TempDir(), "wt")
	created, err := git.WorktreeAdd(context.Background(), repo, dest, "from-ref-branch", sha)
	if err != nil {
		t.Fatalf("WorktreeAdd: %v", err)
	}
	if !created {
		t.Errorf("an explicit from-ref should always create a new branch")
	}
}

func TestWorktreeAddFromBadRefFails(t *testing.T) {
	repo := initRepo(t)
	git := New(testLogger())

	dest := filepath.Join(t.TempDir(), "wt")
	if _, err := git.WorktreeAdd(context.Background(), repo, dest, "whatever", "not-a-real-ref"); err == nil {
		t.Errorf("expected an error for a from-ref that does not resolve")
	}
}

func TestStatusPorcelain(t *testing.T) {
	repo := initRepo(t)
	git := New(testLogger())

	res, err := git.StatusPorcelain(context.Background(), repo)
	if err != nil {
		t.Fatalf("StatusPorcelain: %v", err)
	}
	if res.Dirty {
		t.Errorf("freshly committed repo should not be dirty")
	}

	if err := os.WriteFile(filepath.Join(repo, "new.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(repo, "README.md"), []byte("changed\n"), 0o644); err != nil {
		t.Fatalf("modifying file: %v", err)
	}

	res, err = git.StatusPorcelain(context.Background(), repo)
	if err != nil {
		t.Fatalf("StatusPorcelain: %v", err)
	}
	if !res.Dirty {
		t.Errorf("expected dirty status after modifications")
	}
	if res.UntrackedCount != 1 {
		t.Errorf("UntrackedCount = %d, want 1", res.UntrackedCount)
	}
	if len(res.ModifiedFiles) != 1 || res.ModifiedFiles[0] != "README.md" {
		t.Errorf("ModifiedFiles = %v, want [README.md]", res.ModifiedFiles)
	}
}

func TestAheadBehindNoUpstream(t *testing.T) {
	repo := initRepo(t)
	git := New(testLogger())

	ahead, behind, err := git.AheadBehind(context.Background(), repo)
	if err != nil {
		t.Fatalf("AheadBehind should not error when there is no upstream: %v", err)
	}
	if ahead != 0 || behind != 0 {
		t.Errorf("AheadBehind with no upstream = (%d, %d), want (0, 0)", ahead, behind)
	}
}

func TestClassifyCheckoutError(t *testing.T) {
	err := ClassifyCheckoutError(&exitError{msg: "fatal: reference is not a commit: abc123"})
	if !strings.Contains(err.Error(), ErrUnknownRevision.Error()) {
		t.Fatalf("expected error to be classified as ErrUnknownRevision, got: %v", err)
	}

	other := ClassifyCheckoutError(&exitError{msg: "fatal: some other failure"})
	if strings.Contains(other.Error(), ErrUnknownRevision.Error()) {
		t.Fatalf("unrelated checkout errors should not be classified as ErrUnknownRevision")
	}
}

type exitError struct{ msg string }

func (e *exitError) Error() string { return e.msg }
