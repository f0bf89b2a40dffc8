package batch_test

import (
	"time"

	"testing"

	"github.com/batchforge/batchengine/batch"
	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *batch.Metrics
	// None of these should panic on a nil receiver.
	m.RecordItemLatency("job", "phase", time.Millisecond, "success")
	m.IncrementRetries("job", "phase")
	m.IncrementDeadLetters("job", "phase")
	m.IncrementCheckpoints("job", "count")
	m.SetActiveWorkers(3)
	m.Disable()
	m.Enable()
}

func TestMetricsDisableStopsRecording(t *testing.T) {
	m := batch.NewMetrics(prometheus.NewRegistry())
	m.Disable()
	// Disabled metrics must not panic and must be a no-op.
	m.RecordItemLatency("job", "phase", time.Millisecond, "success")
	m.IncrementRetries("job", "phase")
	m.Enable()
	m.RecordItemLatency("job", "phase", time.Millisecond, "success")
}
