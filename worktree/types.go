// Package worktree implements the multi-repository worktree manager: it
// creates a coherent branch context spanning N repositories, keeps a
// file-locked global registry of those contexts with TTL lifecycle, and
// tears them down in the order children-before-parent.
package worktree

// Repo is one repository's participation in a worktree Context. Alias "."
// denotes the parent workspace repo itself; any other alias is a child
// project name (possibly a slashed nested path).
type Repo struct {
	Alias         string `json:"alias"`
	Branch        string `json:"branch"`
	Path          string `json:"path"`
	SourcePath    string `json:"source_path"`
	CreatedBranch bool   `json:"created_branch"`
}

// Context is a named bundle of parallel branch-checkouts across multiple
// repos, persisted in the registry keyed by the canonical form of RootPath.
type Context struct {
	Name       string            `json:"name"`
	RootPath   string            `json:"root_path"`
	Repos      []Repo            `json:"repos"`
	CreatedAt  string            `json:"created_at"` // RFC3339
	Ephemeral  bool              `json:"ephemeral"`
	TTLSeconds *int64            `json:"ttl_seconds,omitempty"`
	Custom     map[string]string `json:"custom,omitempty"`
}

// RepoSource describes where to find the source repository for a given
// alias, resolved by the caller from the workspace manifest's project map
// before calling Manager.Create.
type RepoSource struct {
	Alias string
	Path  string // absolute path to the source repository
}
