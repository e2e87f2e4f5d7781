// Package metrics exposes Prometheus collectors describing dispatcher runs.
//
// A nil *Collector is valid and records nothing, so callers never need to
// guard their instrumentation calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus collectors for one or more dispatcher runs.
type Collector struct {
	registry *prometheus.Registry

	runs          prometheus.Counter
	tasksQueued   prometheus.Counter
	tasksDone     *prometheus.CounterVec
	activeWorkers prometheus.Gauge
	taskLatency   *prometheus.HistogramVec
}

// NewCollector creates the collectors and registers them on a private registry.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of batch runs started",
		}),
		tasksQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_queued_total",
			Help:      "Total number of task records placed on the task queue",
		}),
		tasksDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Total number of tasks finished, by kind and outcome",
		}, []string{"kind", "outcome"}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Current number of live workers",
		}),
		taskLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Histogram of task execution time",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	c.registry.MustRegister(c.runs, c.tasksQueued, c.tasksDone, c.activeWorkers, c.taskLatency)
	return c
}

// Registry returns the registry the collectors live on.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RunStarted records a new run with n queued tasks.
func (c *Collector) RunStarted(n int) {
	if c == nil {
		return
	}
	c.runs.Inc()
	c.tasksQueued.Add(float64(n))
}

// WorkerStarted increments the live worker gauge.
func (c *Collector) WorkerStarted() {
	if c == nil {
		return
	}
	c.activeWorkers.Inc()
}

// WorkerStopped decrements the live worker gauge.
func (c *Collector) WorkerStopped() {
	if c == nil {
		return
	}
	c.activeWorkers.Dec()
}

// TaskFinished records one task execution.
// outcome is a short label such as "ok", "skipped" or "aborted".
func (c *Collector) TaskFinished(kind, outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.tasksDone.WithLabelValues(kind, outcome).Inc()
	c.taskLatency.WithLabelValues(kind).Observe(took.Seconds())
}

// WriteTextfile writes the current metric values in the text exposition
// format, for pickup by the node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}
