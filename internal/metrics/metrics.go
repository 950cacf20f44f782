// Package metrics holds the Prometheus collectors shared by the pipeline,
// the match engine and the recurrence scheduler. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "jobagent"

// Metrics groups the collectors registered on a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	executions       *prometheus.CounterVec
	executionSeconds prometheus.Histogram
	matches          *prometheus.CounterVec
	cycles           prometheus.Counter
	cycleTasks       *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_executions_total",
			Help:      "Task executions by final status.",
		}, []string{"status"}),
		executionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_execution_seconds",
			Help:      "Wall time of one task execution.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Posting evaluations by result.",
		}, []string{"result"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Recurrence scheduler cycles run.",
		}),
		cycleTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_tasks_total",
			Help:      "Due tasks handled by the scheduler, by outcome.",
		}, []string{"outcome"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.executions,
		m.executionSeconds,
		m.matches,
		m.cycles,
		m.cycleTasks,
	)
	return m
}

// ObserveExecution records a finished task execution.
func (m *Metrics) ObserveExecution(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(status).Inc()
	m.executionSeconds.Observe(d.Seconds())
}

// ObserveMatch records one posting evaluation.
func (m *Metrics) ObserveMatch(success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.matches.WithLabelValues(result).Inc()
}

// ObserveCycle records a scheduler cycle and the per-task outcome counts.
func (m *Metrics) ObserveCycle(succeeded, failed, skipped int) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleTasks.WithLabelValues("succeeded").Add(float64(succeeded))
	m.cycleTasks.WithLabelValues("failed").Add(float64(failed))
	m.cycleTasks.WithLabelValues("skipped").Add(float64(skipped))
}
