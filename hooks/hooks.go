// Package hooks fires the shell commands a workspace manifest configures
// under worktree.hooks.<name> on the worktree lifecycle events
// post-create, post-destroy and post-prune.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
)

const (
	PostCreate  = "post-create"
	PostDestroy = "post-destroy"
	PostPrune   = "post-prune"
)

// Dispatcher fires configured hooks. It never returns an error to the
// caller: a missing hook is a no-op and a failing hook is logged as a
// warning, matching the protocol's "never fatal" contract.
type Dispatcher struct {
	Log *slog.Logger
}

// CreatedRepo is one entry of a post-create payload's repos list.
type CreatedRepo struct {
	Alias         string `json:"alias"`
	Path          string `json:"path"`
	Branch        string `json:"branch"`
	CreatedBranch bool   `json:"created_branch"`
}

// PostCreatePayload is written to the post-create hook's stdin.
type PostCreatePayload struct {
	Action      string            `json:"action"`
	Name        string            `json:"name"`
	Path        string            `json:"path"`
	Repos       []CreatedRepo     `json:"repos"`
	Ephemeral   bool              `json:"ephemeral"`
	TTLSeconds  *int64            `json:"ttl_seconds,omitempty"`
	Custom      map[string]string `json:"custom,omitempty"`
}

// PostDestroyPayload is written to the post-destroy hook's stdin.
type PostDestroyPayload struct {
	Action string `json:"action"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Force  bool   `json:"force"`
}

// PrunedEntry is one entry of a post-prune payload's removed list.
type PrunedEntry struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Reason     string `json:"reason"`
	AgeSeconds *int64 `json:"age_seconds,omitempty"`
}

// PostPrunePayload is written to the post-prune hook's stdin.
type PostPrunePayload struct {
	Action  string        `json:"action"`
	Removed []PrunedEntry `json:"removed"`
}

// Fire looks up worktree.hooks.<hookName> in hookCmds; if present, spawns it
// through sh -c, writes payload as one JSON object to its stdin, closes
// stdin, and waits. A non-zero exit or spawn error is logged as a warning,
// never returned as an error — a hook's failure never fails the caller.
func (d *Dispatcher) Fire(ctx context.Context, hookCmds map[string]string, hookName string, payload any) {
	if hookCmds == nil {
		return
	}
	cmdStr, ok := hookCmds[hookName]
	if !ok || cmdStr == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.Log.Warn("unable to marshal hook payload", "hook", hookName, "err", err)
		return
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	cmd.Stdin = bytes.NewReader(body)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		d.Log.Warn("worktree hook failed", "hook", hookName, "cmd", cmdStr, "err", err, "stderr", stderr.String())
	}
}
