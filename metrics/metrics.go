// Package metrics exposes Prometheus collectors for authorization decisions,
// view recording and queued analytics work.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synergy-framework/blogguard"
)

// Metrics holds the collectors.
type Metrics struct {
	decisions *prometheus.CounterVec
	views     *prometheus.CounterVec
	tasks     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors against registerer. A nil registerer
// selects the default Prometheus registerer, registered once per process.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves gatherer.
func HandlerFor(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Policy wraps inner so every decision is counted by action and outcome.
// The decision itself is returned untouched.
func (m *Metrics) Policy(inner blogguard.Policy) blogguard.Policy {
	if m == nil {
		return inner
	}
	return blogguard.PolicyFunc(func(p blogguard.Principal, action blogguard.Action, res *blogguard.Resource) blogguard.Decision {
		d := inner.Can(p, action, res)
		m.ObserveDecision(action, d)
		return d
	})
}

// ObserveDecision counts one decision.
func (m *Metrics) ObserveDecision(action blogguard.Action, d blogguard.Decision) {
	if m == nil {
		return
	}
	outcome := "allow"
	if !d.Allowed {
		outcome = "deny"
	}
	m.decisions.WithLabelValues(action.String(), outcome, d.Reason.String()).Inc()
}

// ViewRecorder wraps inner and counts recorded and failed view events.
func (m *Metrics) ViewRecorder(inner blogguard.ViewRecorder) blogguard.ViewRecorder {
	if m == nil || inner == nil {
		return inner
	}
	return &viewRecorder{inner: inner, m: m}
}

type viewRecorder struct {
	inner blogguard.ViewRecorder
	m     *Metrics
}

func (v *viewRecorder) RecordView(ctx context.Context, postID, viewerID string, at time.Time) error {
	err := v.inner.RecordView(ctx, postID, viewerID, at)
	status := "recorded"
	if err != nil {
		status = "failed"
	}
	v.m.views.WithLabelValues(status).Inc()
	return err
}

// Tracker instruments a single task run.
type Tracker struct {
	metrics *Metrics
	task    string
	start   time.Time
}

// Track starts a tracker for the named task.
func (m *Metrics) Track(task string) *Tracker {
	return &Tracker{metrics: m, task: task, start: time.Now()}
}

// End records the outcome and duration of the run and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.task == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	t.metrics.tasks.WithLabelValues(t.task, status).Inc()
	t.metrics.duration.WithLabelValues(t.task).Observe(time.Since(t.start).Seconds())
	return err
}

// TaskMiddleware tracks every task processed by an asynq handler.
func (m *Metrics) TaskMiddleware(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		return m.Track(t.Type()).End(next.ProcessTask(ctx, t))
	})
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blogguard_policy_decisions_total",
		Help: "Policy decisions partitioned by action, outcome and denial reason.",
	}, []string{"action", "outcome", "reason"})
	views := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blogguard_view_events_total",
		Help: "Post view events handed to the analytics collaborator, by status.",
	}, []string{"status"})
	tasks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blogguard_tasks_total",
		Help: "Background task executions partitioned by task type and status.",
	}, []string{"task", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blogguard_task_duration_seconds",
		Help:    "Duration in seconds of background task executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	registerer.MustRegister(decisions, views, tasks, duration)
	return &Metrics{decisions: decisions, views: views, tasks: tasks, duration: duration}
}
