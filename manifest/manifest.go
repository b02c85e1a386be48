// Package manifest locates and parses workspace manifests: the .meta,
// .meta.json, .meta.yaml or .meta.yml file that declares a workspace's
// member projects, and the nested manifests those projects may themselves
// carry.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Project is a declared member of a workspace.
type Project struct {
	Name         string   `json:"-" yaml:"-"`
	RelativePath string   `json:"path,omitempty" yaml:"path,omitempty"`
	RemoteURL    string   `json:"repo,omitempty" yaml:"repo,omitempty"`
	IsMeta       bool     `json:"meta,omitempty" yaml:"meta,omitempty"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Provides     []string `json:"provides,omitempty" yaml:"provides,omitempty"`
	DependsOn    []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// rawProject is used to unmarshal the long form without recursing into
// Project's own custom unmarshallers.
type rawProject struct {
	RelativePath string   `json:"path,omitempty" yaml:"path,omitempty"`
	RemoteURL    string   `json:"repo,omitempty" yaml:"repo,omitempty"`
	IsMeta       bool     `json:"meta,omitempty" yaml:"meta,omitempty"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Provides     []string `json:"provides,omitempty" yaml:"provides,omitempty"`
	DependsOn    []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// UnmarshalJSON accepts either a bare URL string (sugar for
// {path: name, repo: url, meta: false}) or the long object form. Name is
// filled in by the caller, since it is the map key, not part of the value.
func (p *Project) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.RemoteURL = s
		return nil
	}

	var r rawProject
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	p.RelativePath = r.RelativePath
	p.RemoteURL = r.RemoteURL
	p.IsMeta = r.IsMeta
	p.Tags = r.Tags
	p.Provides = r.Provides
	p.DependsOn = r.DependsOn
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for the YAML decoder.
func (p *Project) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		p.RemoteURL = s
		return nil
	}

	var r rawProject
	if err := node.Decode(&r); err != nil {
		return err
	}
	p.RelativePath = r.RelativePath
	p.RemoteURL = r.RemoteURL
	p.IsMeta = r.IsMeta
	p.Tags = r.Tags
	p.Provides = r.Provides
	p.DependsOn = r.DependsOn
	return nil
}

// WorktreeManifestConfig is the "worktree" section of a manifest.
type WorktreeManifestConfig struct {
	Hooks map[string]string `json:"hooks,omitempty" yaml:"hooks,omitempty"`
}

// Manifest is the decoded content of a .meta/.meta.json/.meta.yaml/.meta.yml
// file, plus its on-disk location.
type Manifest struct {
	Path         string                 `json:"-" yaml:"-"`
	Dir          string                 `json:"-" yaml:"-"`
	Projects     map[string]Project     `json:"projects,omitempty" yaml:"projects,omitempty"`
	WorktreesDir string                 `json:"worktrees_dir,omitempty" yaml:"worktrees_dir,omitempty"`
	Worktree     WorktreeManifestConfig `json:"worktree,omitempty" yaml:"worktree,omitempty"`
	Ignore       []string               `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// ManifestNames are the recognised manifest file names, in the order they
// are looked up.
var ManifestNames = []string{".meta", ".meta.json", ".meta.yaml", ".meta.yml"}

// FindManifest scans startDir and then each ancestor upward for the first
// file matching one of ManifestNames.
func FindManifest(startDir string) (path string, ok bool) {
	dir := startDir
	for {
		for _, name := range ManifestNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// ParseManifest reads and decodes the manifest at path. The bare ".meta"
// name is tried as JSON first, then YAML; the others use their extension.
// Unreadable files are reported as an error naming the file; callers that
// want "absent manifest" semantics should check existence first (see
// FindManifest).
func ParseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	m := &Manifest{Path: path, Dir: filepath.Dir(path)}

	base := filepath.Base(path)
	tryJSONFirst := base == ".meta" || strings.HasSuffix(base, ".json")
	tryYAMLFirst := strings.HasSuffix(base, ".yaml") || strings.HasSuffix(base, ".yml")

	var jsonErr, yamlErr error
	switch {
	case tryYAMLFirst:
		yamlErr = yaml.Unmarshal(data, m)
	case tryJSONFirst:
		jsonErr = json.Unmarshal(data, m)
		if jsonErr != nil {
			yamlErr = yaml.Unmarshal(data, m)
		}
	default:
		jsonErr = json.Unmarshal(data, m)
		if jsonErr != nil {
			yamlErr = yaml.Unmarshal(data, m)
		}
	}

	if tryYAMLFirst && yamlErr != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, yamlErr)
	}
	if !tryYAMLFirst && jsonErr != nil && yamlErr != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, yamlErr)
	}

	for name, p := range m.Projects {
		p.Name = name
		if p.RelativePath == "" {
			p.RelativePath = name
		}
		m.Projects[name] = p
	}

	return m, nil
}
