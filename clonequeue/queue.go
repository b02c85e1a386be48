// Package clonequeue is the self-extending concurrent work queue at the
// heart of cloning a workspace: it admits clone tasks, dedups them by target
// path, and discovers further tasks from a just-cloned meta-project's own
// manifest, all while a pool of workers drains it in parallel.
package clonequeue

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/harmony-labs/meta-git-lib/giturl"
	"github.com/harmony-labs/meta-git-lib/internal/lock"
	"github.com/harmony-labs/meta-git-lib/manifest"
)

// RemoteURLChecker is the subset of the VCS driver PushFromMeta needs to
// verify that a pre-existing target directory's origin still matches the
// manifest's declared remote. Satisfied by *vcs.Git.
type RemoteURLChecker interface {
	RemoteOriginURL(ctx context.Context, repoDir string) (url string, ok bool)
}

// Task is one unit of cloning work. Identity is TargetPath; two tasks with
// the same target are duplicates.
type Task struct {
	DisplayName string
	RemoteURL   string
	TargetPath  string
	DepthLevel  int
	IsMeta      bool
}

// Queue holds the pending/completed/failed state shared by a scheduler's
// worker pool. Three separate locks minimise contention between the hot
// push/take path and the less frequent completed/failed bookkeeping.
type Queue struct {
	log *slog.Logger

	pendingMu lock.Mutex
	pending   []*Task

	completedMu lock.Mutex
	completed   map[string]struct{}

	failedMu lock.Mutex
	failed   map[string]struct{}

	totalDiscovered atomic.Int64
	totalCompleted  atomic.Int64
	activeWorkers   atomic.Int64

	// GitDepth is passed through to VCS.Clone; 0 means a full clone.
	GitDepth int
	// MetaDepth bounds manifest-discovery recursion; negative means
	// unlimited.
	MetaDepth int
	// Git, if set, lets PushFromMeta verify a pre-existing target's origin
	// against the manifest's declared remote instead of trusting the
	// directory's mere presence. Nil disables the check (path-only skip).
	Git RemoteURLChecker
}

// New returns an empty Queue. metaDepth < 0 means unlimited recursion.
func New(log *slog.Logger, gitDepth, metaDepth int) *Queue {
	return &Queue{
		log:       log,
		completed: map[string]struct{}{},
		failed:    map[string]struct{}{},
		GitDepth:  gitDepth,
		MetaDepth: metaDepth,
	}
}

// Push admits task iff its TargetPath is neither already completed nor
// already pending. Admission increments TotalDiscovered. The return value
// reports whether the task was admitted; a duplicate is a normal, silent
// outcome, not an error.
func (q *Queue) Push(task *Task) bool {
	q.completedMu.Lock()
	_, done := q.completed[task.TargetPath]
	q.completedMu.Unlock()
	if done {
		return false
	}

	q.pendingMu.Lock()
	defer q.pendingMu.Unlock()
	for _, t := range q.pending {
		if t.TargetPath == task.TargetPath {
			return false
		}
	}
	q.pending = append(q.pending, task)
	q.totalDiscovered.Add(1)
	return true
}

// TakeOne pops the tail of pending (LIFO). Work is observed depth-first
// within one queue; no ordering is promised across workers.
func (q *Queue) TakeOne() (*Task, bool) {
	q.pendingMu.Lock()
	defer q.pendingMu.Unlock()
	n := len(q.pending)
	if n == 0 {
		return nil, false
	}
	task := q.pending[n-1]
	q.pending = q.pending[:n-1]
	return task, true
}

// DrainAll removes and returns the current pending contents without
// cloning, for dry-run callers.
func (q *Queue) DrainAll() []*Task {
	q.pendingMu.Lock()
	defer q.pendingMu.Unlock()
	drained := q.pending
	q.pending = nil
	return drained
}

func (q *Queue) pendingLen() int {
	q.pendingMu.Lock()
	defer q.pendingMu.Unlock()
	return len(q.pending)
}

// IsFinished is true exactly when pending is empty and no worker is
// currently active. The joint check is required: checking pending alone
// would let a worker loop exit while a sibling worker is about to publish
// newly-discovered tasks from a meta-project it just finished cloning.
func (q *Queue) IsFinished() bool {
	return q.pendingLen() == 0 && q.activeWorkers.Load() == 0
}

// MarkCompleted records task's target as completed, increments
// TotalCompleted, and discovers any nested children the now-cloned
// meta-project declares. If task was declared IsMeta but no nested manifest
// was found (zero tasks admitted), a warning is logged naming the project;
// this is a normal, non-fatal outcome.
func (q *Queue) MarkCompleted(ctx context.Context, task *Task) int {
	q.completedMu.Lock()
	q.completed[task.TargetPath] = struct{}{}
	q.completedMu.Unlock()
	q.totalCompleted.Add(1)

	admitted := q.PushFromMeta(ctx, task.TargetPath, task.DepthLevel+1)

	if task.IsMeta && admitted == 0 {
		q.log.Warn("project declared meta:true but no .meta config was found inside it", "name", task.DisplayName)
	}

	return admitted
}

// MarkFailed records task's target as failed. TotalCompleted is incremented
// here too (an intentional choice inherited from the source design: the
// "settled work" counter reaches its final value even when some tasks
// failed, so operator-facing progress reaches 100% rather than stalling).
func (q *Queue) MarkFailed(task *Task) {
	q.failedMu.Lock()
	q.failed[task.TargetPath] = struct{}{}
	q.failedMu.Unlock()
	q.totalCompleted.Add(1)
}

// Counts returns (totalCompleted, totalDiscovered).
func (q *Queue) Counts() (completed, discovered int64) {
	return q.totalCompleted.Load(), q.totalDiscovered.Load()
}

// Failed returns a snapshot of the failed target paths.
func (q *Queue) Failed() []string {
	q.failedMu.Lock()
	defer q.failedMu.Unlock()
	out := make([]string, 0, len(q.failed))
	for k := range q.failed {
		out = append(out, k)
	}
	return out
}

// Completed returns a snapshot of the completed target paths.
func (q *Queue) Completed() []string {
	q.completedMu.Lock()
	defer q.completedMu.Unlock()
	out := make([]string, 0, len(q.completed))
	for k := range q.completed {
		out = append(out, k)
	}
	return out
}

func (q *Queue) incActive()   { q.activeWorkers.Add(1) }
func (q *Queue) decActive()   { q.activeWorkers.Add(-1) }

// PushFromMeta discovers and admits tasks from the manifest found in
// baseDir, honouring MetaDepth. For each declared project: if its target
// already exists on disk, it is never (re-)cloned, but if that directory
// itself carries a manifest, discovery recurses into it one level deeper —
// this is what makes resume-after-interrupt and pre-populated workspaces
// work. When Git is set, an existing target's origin is checked against the
// manifest's declared remote via giturl.URLsMatch and a mismatch is logged
// as a warning (the on-disk repo is still left untouched; this tool does not
// rewrite remotes). A project with no RemoteURL is skipped silently; it
// cannot be cloned. Returns the count of newly admitted tasks.
func (q *Queue) PushFromMeta(ctx context.Context, baseDir string, depthLevel int) int {
	if q.MetaDepth >= 0 && depthLevel > q.MetaDepth {
		return 0
	}

	path, ok := manifest.FindManifestAt(baseDir)
	if !ok {
		return 0
	}

	m, err := manifest.ParseManifest(path)
	if err != nil {
		q.log.Warn("unable to parse manifest during discovery", "path", path, "err", err)
		return 0
	}

	admitted := 0
	for name, p := range m.Projects {
		target := joinPath(baseDir, p.RelativePath)

		if pathExists(target) {
			q.checkExistingRemote(ctx, name, target, p.RemoteURL)
			if _, nested := manifest.FindManifestAt(target); nested {
				admitted += q.PushFromMeta(ctx, target, depthLevel+1)
			}
			continue
		}

		if p.RemoteURL == "" {
			continue
		}

		task := &Task{
			DisplayName: name,
			RemoteURL:   p.RemoteURL,
			TargetPath:  target,
			DepthLevel:  depthLevel,
			IsMeta:      p.IsMeta,
		}
		if q.Push(task) {
			admitted++
		}
	}

	return admitted
}

// checkExistingRemote warns when a pre-existing target's configured origin
// does not match the manifest's declared remote. No-op when Git is unset,
// declaredURL is empty, or the target has no origin configured.
func (q *Queue) checkExistingRemote(ctx context.Context, name, target, declaredURL string) {
	if q.Git == nil || declaredURL == "" {
		return
	}
	actualURL, ok := q.Git.RemoteOriginURL(ctx, target)
	if !ok {
		return
	}
	if !giturl.URLsMatch(actualURL, declaredURL) {
		q.log.Warn("existing repo's origin does not match the manifest's declared remote",
			"name", name, "path", target, "origin", actualURL, "declared", declaredURL)
	}
}
