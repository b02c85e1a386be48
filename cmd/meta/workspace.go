package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harmony-labs/meta-git-lib/manifest"
)

// workspace bundles the resolved manifest tree and derived lookups every
// subcommand needs: the root directory, the flattened project map and the
// root manifest's own worktree configuration.
type workspace struct {
	Root         string
	RootManifest *manifest.Manifest
	Projects     map[string]manifest.ProjectRef
}

// loadWorkspace finds the nearest manifest at or above dir, walks the full
// nested-manifest tree from there, and flattens it into a project map keyed
// by slash-joined project names.
func loadWorkspace(dir string) (*workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace directory: %w", err)
	}

	path, ok := manifest.FindManifest(abs)
	if !ok {
		return nil, fmt.Errorf("no .meta manifest found at or above %s", abs)
	}
	root := filepath.Dir(path)

	rootManifest, err := manifest.ParseManifest(path)
	if err != nil {
		return nil, err
	}

	tree, err := manifest.WalkTree(root)
	if err != nil {
		return nil, err
	}

	return &workspace{
		Root:         root,
		RootManifest: rootManifest,
		Projects:     manifest.BuildProjectMap(tree, root),
	}, nil
}

func currentDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
