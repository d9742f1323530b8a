package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecorders(t *testing.T) {
	m := NewMetrics()

	m.SetQueueLength(4)
	m.RecordAssignment("assigned")
	m.RecordAssignment("assigned")
	m.RecordAssignment("no_staff")
	m.RecordRequest("/queue", "GET", 200, 10*time.Millisecond)
	m.AddConnection("staff", 2)
	m.AddConnection("staff", -1)

	require.InDelta(t, 4, testutil.ToFloat64(m.queueLength), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.assignments.WithLabelValues("assigned")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.assignments.WithLabelValues("no_staff")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.requests.WithLabelValues("/queue", "GET", "200")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.connections.WithLabelValues("staff")), 0)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.SetQueueLength(1)
		m.RecordAssignment("assigned")
		m.RecordTransfer("ok")
		m.RecordCompletion()
		m.RecordEscalation("customer")
		m.RecordAIRequest("ok")
		m.AddConnection("customer", 1)
		m.RecordError("/x", "GET", "NOT_FOUND")
	})
}
