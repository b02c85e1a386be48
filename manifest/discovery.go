package manifest

import (
	"os"
	"path/filepath"
)

// Node is one level of a depth-first walk of nested manifests: the manifest
// parsed at this directory (nil if the directory has none), plus the
// recursively-walked children whose project declared meta:true and whose
// directory itself contains a manifest.
type Node struct {
	Dir      string
	Manifest *Manifest
	Children map[string]*Node // project name -> child node
}

// WalkTree performs a depth-first recursive walk starting at root, parsing
// the manifest there and recursing into any project marked is_meta whose
// directory itself contains a manifest. A path already visited in the
// current walk is never re-entered, guarding against manifest cycles
// declared via symlinks or mutually-referencing relative paths.
func WalkTree(root string) (*Node, error) {
	return walk(root, map[string]bool{})
}

func walk(dir string, visited map[string]bool) (*Node, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	if visited[abs] {
		return &Node{Dir: dir}, nil
	}
	visited[abs] = true

	path, ok := FindManifestAt(dir)
	if !ok {
		return &Node{Dir: dir}, nil
	}

	m, err := ParseManifest(path)
	if err != nil {
		return nil, err
	}

	node := &Node{Dir: dir, Manifest: m, Children: map[string]*Node{}}

	for name, p := range m.Projects {
		if !p.IsMeta {
			continue
		}
		childDir := filepath.Join(dir, p.RelativePath)
		if _, ok := FindManifestAt(childDir); !ok {
			continue
		}
		child, err := walk(childDir, visited)
		if err != nil {
			return nil, err
		}
		node.Children[name] = child
	}

	return node, nil
}

// FindManifestAt checks exactly dir (no ancestor walk) for a manifest file.
func FindManifestAt(dir string) (path string, ok bool) {
	for _, name := range ManifestNames {
		candidate := filepath.Join(dir, name)
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// ProjectRef is one entry of the map produced by BuildProjectMap.
type ProjectRef struct {
	AbsolutePath string
	Project      Project
}

// BuildProjectMap flattens a walked tree into lookup keys of the form
// "vendor/sub/lib" (each hop's project name joined by '/'), mapped to the
// project's absolute path and declaration.
func BuildProjectMap(tree *Node, root string) map[string]ProjectRef {
	out := map[string]ProjectRef{}
	buildProjectMap(tree, root, "", out)
	return out
}

func buildProjectMap(node *Node, dir, prefix string, out map[string]ProjectRef) {
	if node == nil || node.Manifest == nil {
		return
	}
	for name, p := range node.Manifest.Projects {
		key := name
		if prefix != "" {
			key = prefix + "/" + name
		}
		abs := filepath.Join(dir, p.RelativePath)
		out[key] = ProjectRef{AbsolutePath: abs, Project: p}

		if child, ok := node.Children[name]; ok {
			buildProjectMap(child, abs, key, out)
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
