// Package metrics wires optional Prometheus instrumentation for clone
// operations, mirroring the gauge/counter/histogram triple the teacher
// repository package registers for its mirror runs. All package-level
// collectors start nil; RecordClone and ObserveCloneLatency are no-ops until
// Enable has been called, so instrumentation stays entirely optional for
// callers that never wire a registerer.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lastCloneTimestamp     *prometheus.GaugeVec
	cloneCount             *prometheus.CounterVec
	cloneLatency           *prometheus.HistogramVec
	activeWorktreeCtxGauge prometheus.Gauge
)

// Enable registers the clone and worktree metrics under metricsNamespace
// with registerer. Available metrics:
//   - meta_last_clone_timestamp - (tags: repo) gauge of the last successful
//     clone's completion time.
//   - meta_clone_count - (tags: repo, success) counter of clone attempts.
//   - meta_clone_latency_seconds - (tags: repo) histogram of clone duration.
//   - meta_active_worktree_contexts - gauge of registered worktree contexts.
func Enable(metricsNamespace string, registerer prometheus.Registerer) {
	// A factory with a nil registerer creates unregistered collectors, so
	// the single MustRegister below is their only registration.
	factory := promauto.With(nil)

	lastCloneTimestamp = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "last_clone_timestamp",
		Help:      "Timestamp of the last successful clone",
	}, []string{"repo"})

	cloneCount = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "clone_count",
		Help:      "Count of clone operations",
	}, []string{"repo", "success"})

	cloneLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "clone_latency_seconds",
		Help:      "Latency of clone operations",
		Buckets:   []float64{0.5, 1, 5, 10, 20, 30, 60, 90, 120, 150, 300},
	}, []string{"repo"})

	activeWorktreeCtxGauge = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "active_worktree_contexts",
		Help:      "Number of worktree contexts currently registered",
	})

	registerer.MustRegister(lastCloneTimestamp, cloneCount, cloneLatency, activeWorktreeCtxGauge)
}

// RecordClone records one clone attempt's outcome.
func RecordClone(repo string, success bool) {
	if lastCloneTimestamp == nil || cloneCount == nil {
		return
	}
	if success {
		lastCloneTimestamp.With(prometheus.Labels{"repo": repo}).Set(float64(time.Now().Unix()))
	}
	cloneCount.With(prometheus.Labels{
		"repo":    repo,
		"success": strconv.FormatBool(success),
	}).Inc()
}

// ObserveCloneLatency records the duration since start for repo's clone.
func ObserveCloneLatency(repo string, start time.Time) {
	if cloneLatency == nil {
		return
	}
	cloneLatency.WithLabelValues(repo).Observe(time.Since(start).Seconds())
}

// SetActiveWorktreeContexts records the current count of registered worktree
// contexts, called by the worktree manager after every mutation.
func SetActiveWorktreeContexts(n int) {
	if activeWorktreeCtxGauge == nil {
		return
	}
	activeWorktreeCtxGauge.Set(float64(n))
}
