package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseManifestJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".meta")
	body := `{
		"projects": {
			"short-form": "git@github.com:org/short.git",
			"long-form": {
				"path": "libs/long",
				"repo": "git@github.com:org/long.git",
				"meta": true,
				"tags": ["core"]
			}
		},
		"worktrees_dir": "wt",
		"worktree": {"hooks": {"post-create": "echo hi"}}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	m, err := ParseManifest(path)
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}

	want := map[string]Project{
		"short-form": {Name: "short-form", RelativePath: "short-form", RemoteURL: "git@github.com:org/short.git"},
		"long-form":  {Name: "long-form", RelativePath: "libs/long", RemoteURL: "git@github.com:org/long.git", IsMeta: true, Tags: []string{"core"}},
	}
	if diff := cmp.Diff(want, m.Projects); diff != "" {
		t.Errorf("Projects mismatch (-want +got):\n%s", diff)
	}
	if m.WorktreesDir != "wt" {
		t.Errorf("WorktreesDir = %q, want %q", m.WorktreesDir, "wt")
	}
	if m.Worktree.Hooks["post-create"] != "echo hi" {
		t.Errorf("hooks not parsed: %+v", m.Worktree.Hooks)
	}
}

func TestParseManifestYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".meta.yaml")
	body := "projects:\n  sugar: git@github.com:org/sugar.git\n  full:\n    path: libs/full\n    repo: git@github.com:org/full.git\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	m, err := ParseManifest(path)
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if m.Projects["sugar"].RemoteURL != "git@github.com:org/sugar.git" {
		t.Errorf("sugar project not decoded: %+v", m.Projects["sugar"])
	}
	if m.Projects["full"].RelativePath != "libs/full" {
		t.Errorf("full project path not decoded: %+v", m.Projects["full"])
	}
}

func TestFindManifestWalksAncestors(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	manifestPath := filepath.Join(root, ".meta")
	if err := os.WriteFile(manifestPath, []byte(`{"projects":{}}`), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	got, ok := FindManifest(nested)
	if !ok {
		t.Fatalf("FindManifest did not find manifest from %s", nested)
	}
	if got != manifestPath {
		t.Errorf("FindManifest = %q, want %q", got, manifestPath)
	}
}

func TestFindManifestNotFound(t *testing.T) {
	dir := t.TempDir()
	if _, ok := FindManifest(dir); ok {
		t.Errorf("FindManifest unexpectedly found a manifest in an empty tree")
	}
}
