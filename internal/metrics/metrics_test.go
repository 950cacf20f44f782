package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Observe(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveExecution("completed", 2*time.Second)
	m.ObserveExecution("failed", time.Second)
	m.ObserveMatch(true)
	m.ObserveMatch(true)
	m.ObserveMatch(false)
	m.ObserveCycle(3, 1, 2)

	if got := testutil.ToFloat64(m.executions.WithLabelValues("completed")); got != 1 {
		t.Errorf("completed executions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.matches.WithLabelValues("success")); got != 2 {
		t.Errorf("successful matches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.matches.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed matches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cycles); got != 1 {
		t.Errorf("cycles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cycleTasks.WithLabelValues("skipped")); got != 2 {
		t.Errorf("skipped = %v, want 2", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveExecution("completed", time.Second)
	m.ObserveMatch(false)
	m.ObserveCycle(1, 1, 1)
}
