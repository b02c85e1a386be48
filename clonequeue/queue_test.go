package clonequeue

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func newTestQueue() *Queue {
	return New(slog.New(slog.NewTextHandler(os.Stderr, nil)), 0, -1)
}

func TestPushDedup(t *testing.T) {
	q := newTestQueue()

	if !q.Push(&Task{DisplayName: "a", TargetPath: "/tmp/a"}) {
		t.Fatalf("first push of a new target should be admitted")
	}
	if q.Push(&Task{DisplayName: "a-dup", TargetPath: "/tmp/a"}) {
		t.Fatalf("pushing a duplicate pending target should not be admitted")
	}

	task, ok := q.TakeOne()
	if !ok {
		t.Fatalf("expected a task to take")
	}
	q.MarkCompleted(context.Background(), task)

	if q.Push(&Task{DisplayName: "a-again", TargetPath: "/tmp/a"}) {
		t.Fatalf("pushing an already-completed target should not be admitted")
	}
}

func TestTakeOneLIFO(t *testing.T) {
	q := newTestQueue()
	q.Push(&Task{TargetPath: "/tmp/1"})
	q.Push(&Task{TargetPath: "/tmp/2"})
	q.Push(&Task{TargetPath: "/tmp/3"})

	first, _ := q.TakeOne()
	if first.TargetPath != "/tmp/3" {
		t.Errorf("expected LIFO order, got %q first", first.TargetPath)
	}
}

func TestIsFinished(t *testing.T) {
	q := newTestQueue()
	if !q.IsFinished() {
		t.Fatalf("an empty queue with no active workers should be finished")
	}

	q.Push(&Task{TargetPath: "/tmp/x"})
	if q.IsFinished() {
		t.Fatalf("a queue with pending work should not be finished")
	}

	task, _ := q.TakeOne()
	q.incActive()
	if q.IsFinished() {
		t.Fatalf("a queue with an active worker and empty pending should not be finished")
	}
	q.MarkCompleted(context.Background(), task)
	q.decActive()
	if !q.IsFinished() {
		t.Fatalf("queue should be finished once pending is empty and no worker is active")
	}
}

func TestMarkCompletedDiscoversChildren(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "child")

	if err := os.WriteFile(filepath.Join(root, ".meta"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("writing parent manifest: %v", err)
	}
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	childManifest := `{"projects": {"grandchild": {"path": "grandchild", "repo": "git@host:org/gc.git"}}}`
	if err := os.WriteFile(filepath.Join(child, ".meta"), []byte(childManifest), 0o644); err != nil {
		t.Fatalf("writing child manifest: %v", err)
	}

	q := newTestQueue()
	task := &Task{DisplayName: "child", TargetPath: child, IsMeta: true, DepthLevel: 0}
	q.Push(task)
	q.TakeOne()

	admitted := q.MarkCompleted(context.Background(), task)
	if admitted != 1 {
		t.Fatalf("expected MarkCompleted to discover 1 grandchild task, got %d", admitted)
	}

	next, ok := q.TakeOne()
	if !ok {
		t.Fatalf("expected the discovered grandchild task to be pending")
	}
	if next.TargetPath != filepath.Join(child, "grandchild") {
		t.Errorf("discovered task target = %q, want %q", next.TargetPath, filepath.Join(child, "grandchild"))
	}
}

func TestMarkCompletedWarnsOnEmptyMeta(t *testing.T) {
	root := t.TempDir()
	// no nested manifest at root: MarkCompleted on an IsMeta task should warn
	// but still report zero admitted tasks without error.
	q := newTestQueue()
	task := &Task{DisplayName: "lonely-meta", TargetPath: root, IsMeta: true}
	q.Push(task)
	q.TakeOne()

	if admitted := q.MarkCompleted(context.Background(), task); admitted != 0 {
		t.Errorf("expected 0 admitted tasks for a meta project with no nested manifest, got %d", admitted)
	}
}

func TestMarkFailedCountsTowardCompleted(t *testing.T) {
	q := newTestQueue()
	task := &Task{TargetPath: "/tmp/fail"}
	q.Push(task)
	q.TakeOne()
	q.MarkFailed(task)

	completed, discovered := q.Counts()
	if completed != 1 {
		t.Errorf("MarkFailed should count toward totalCompleted, got %d", completed)
	}
	if discovered != 1 {
		t.Errorf("totalDiscovered = %d, want 1", discovered)
	}
	failed := q.Failed()
	if len(failed) != 1 || failed[0] != "/tmp/fail" {
		t.Errorf("Failed() = %v, want [/tmp/fail]", failed)
	}
}
