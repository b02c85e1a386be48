package worktree

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateWorktreeName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid-simple", "feature-x", false},
		{"valid-underscore", "feat_123", false},
		{"empty", "", true},
		{"leading-dot", ".hidden", true},
		{"contains-slash", "a/b", true},
		{"contains-space", "a b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWorktreeName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWorktreeName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestParseDurationAndFormatDuration(t *testing.T) {
	parseTests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"30", 30, false},
		{"10s", 10, false},
		{"5m", 300, false},
		{"2h", 7200, false},
		{"3d", 259200, false},
		{"1w", 604800, false},
		{"", 0, true},
		{"10x", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range parseTests {
		t.Run("parse/"+tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseDuration(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}

	formatTests := []struct {
		secs int64
		want string
	}{
		{0, "0s"},
		{45, "45s"},
		{300, "5m"},
		{7200, "2h"},
		{259200, "3d"},
		{604800, "1w"},
		{-120, "-2m"},
	}
	for _, tt := range formatTests {
		if got := FormatDuration(tt.secs); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestResolveWorktreeRoot(t *testing.T) {
	os.Unsetenv("META_WORKTREES")

	if got := ResolveWorktreeRoot("/ws", ""); got != filepath.Join("/ws", ".worktrees") {
		t.Errorf("default root = %q", got)
	}
	if got := ResolveWorktreeRoot("/ws", "custom-wt"); got != filepath.Join("/ws", "custom-wt") {
		t.Errorf("relative manifest root = %q", got)
	}
	if got := ResolveWorktreeRoot("/ws", "/abs/wt"); got != "/abs/wt" {
		t.Errorf("absolute manifest root = %q", got)
	}

	os.Setenv("META_WORKTREES", "/env/wt")
	defer os.Unsetenv("META_WORKTREES")
	if got := ResolveWorktreeRoot("/ws", "custom-wt"); got != "/env/wt" {
		t.Errorf("env override should win, got %q", got)
	}
}

func TestEnsureWorktreesInGitignoreIdempotent(t *testing.T) {
	dir := t.TempDir()

	if err := EnsureWorktreesInGitignore(dir, ".worktrees"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := EnsureWorktreesInGitignore(dir, ".worktrees"); err != nil {
		t.Fatalf("second call: %v", err)
	}

	body, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		t.Fatalf("reading .gitignore: %v", err)
	}
	count := strings.Count(string(body), ".worktrees/")
	if count != 1 {
		t.Errorf("expected exactly one .worktrees/ entry, found %d in:\n%s", count, body)
	}
}

func TestResolveBranch(t *testing.T) {
	tests := []struct {
		name         string
		worktreeName string
		branchFlag   string
		perRepo      string
		want         string
	}{
		{"per-repo-wins", "wt", "flag-branch", "repo-branch", "repo-branch"},
		{"flag-wins-over-default", "wt", "flag-branch", "", "flag-branch"},
		{"default-to-worktree-name", "wt", "", "", "wt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveBranch(tt.worktreeName, tt.branchFlag, tt.perRepo); got != tt.want {
				t.Errorf("ResolveBranch() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRepoSpec(t *testing.T) {
	alias, branch := ParseRepoSpec("service-a:feature-x")
	if alias != "service-a" || branch != "feature-x" {
		t.Errorf("ParseRepoSpec with branch = (%q, %q)", alias, branch)
	}
	alias, branch = ParseRepoSpec("service-a")
	if alias != "service-a" || branch != "" {
		t.Errorf("ParseRepoSpec without branch = (%q, %q)", alias, branch)
	}
}
