package clonequeue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harmony-labs/meta-git-lib/metrics"
)

// Cloner is the subset of the VCS driver the scheduler needs. Satisfied by
// *vcs.Git; accepted as an interface so tests can substitute a fake.
type Cloner interface {
	Clone(ctx context.Context, url, target string, depth int) error
}

// Scheduler drives a fixed-size pool of worker goroutines against a Queue
// until the queue's termination predicate is met.
type Scheduler struct {
	Queue  *Queue
	Cloner Cloner
	Log    *slog.Logger

	// PollInterval is how long an idle worker waits before re-checking the
	// queue for new work or termination. Defaults to 20ms.
	PollInterval time.Duration
}

// Run starts workers goroutines and blocks until the queue is finished or
// ctx is cancelled. Each worker: takes a task, clones it, and on success
// recursively discovers that project's own children before looping; on
// failure it records the failure and continues. A worker only exits when
// Queue.IsFinished() is true — checking pending alone would race against a
// sibling worker about to publish newly-discovered tasks.
func (s *Scheduler) Run(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	poll := s.PollInterval
	if poll <= 0 {
		poll = 20 * time.Millisecond
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.workerLoop(ctx, poll)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) workerLoop(ctx context.Context, poll time.Duration) {
	for {
		if ctx.Err() != nil {
			return
		}

		task, ok := s.Queue.TakeOne()
		if !ok {
			if s.Queue.IsFinished() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(poll):
			}
			continue
		}

		s.Queue.incActive()
		start := time.Now()
		err := s.Cloner.Clone(ctx, task.RemoteURL, task.TargetPath, s.Queue.GitDepth)
		metrics.ObserveCloneLatency(task.DisplayName, start)
		if err != nil {
			s.Log.Error("clone failed", "name", task.DisplayName, "url", task.RemoteURL, "target", task.TargetPath, "err", err)
			s.Queue.MarkFailed(task)
			metrics.RecordClone(task.DisplayName, false)
		} else {
			s.Queue.MarkCompleted(ctx, task)
			metrics.RecordClone(task.DisplayName, true)
		}
		s.Queue.decActive()
	}
}
