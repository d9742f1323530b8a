package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for the service.
type Metrics struct {
	Registry *prometheus.Registry

	requests      *prometheus.CounterVec
	requestErrors *prometheus.CounterVec
	latency       *prometheus.HistogramVec

	queueLength    prometheus.Gauge
	assignments    *prometheus.CounterVec
	transfers      *prometheus.CounterVec
	completions    prometheus.Counter
	escalations    *prometheus.CounterVec
	aiRequests     *prometheus.CounterVec
	connections    *prometheus.GaugeVec
	availableStaff prometheus.Gauge
}

// NewMetrics registers collectors on a fresh registry so tests can build many instances.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "handoff",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by path, method and status",
		}, []string{"path", "method", "status"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "handoff",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "HTTP errors by path, method and error code",
		}, []string{"path", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "handoff",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "handoff",
			Name:      "queue_length",
			Help:      "Sessions currently waiting for staff",
		}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "handoff",
			Name:      "assignments_total",
			Help:      "Assignment attempts by outcome",
		}, []string{"outcome"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "handoff",
			Name:      "transfers_total",
			Help:      "Transfer attempts by outcome",
		}, []string{"outcome"}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "handoff",
			Name:      "completions_total",
			Help:      "Chats marked resolved by staff",
		}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "handoff",
			Name:      "escalations_total",
			Help:      "Escalations by trigger",
		}, []string{"trigger"}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "handoff",
			Name:      "ai_requests_total",
			Help:      "AI responder calls by outcome",
		}, []string{"outcome"}),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "handoff",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Live realtime connections by role",
		}, []string{"role"}),
		availableStaff: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "handoff",
			Name:      "available_staff",
			Help:      "Online staff with spare capacity",
		}),
	}
	reg.MustRegister(
		m.requests, m.requestErrors, m.latency,
		m.queueLength, m.assignments, m.transfers, m.completions,
		m.escalations, m.aiRequests, m.connections, m.availableStaff,
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.requestErrors.WithLabelValues(path, method, code).Inc()
}

// SetQueueLength records the current queue depth.
func (m *Metrics) SetQueueLength(n int) {
	if m == nil {
		return
	}
	m.queueLength.Set(float64(n))
}

// SetAvailableStaff records the size of the routing candidate pool.
func (m *Metrics) SetAvailableStaff(n int) {
	if m == nil {
		return
	}
	m.availableStaff.Set(float64(n))
}

// RecordAssignment counts an assignment attempt; outcome is e.g. "assigned" or "no_staff".
func (m *Metrics) RecordAssignment(outcome string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(outcome).Inc()
}

// RecordTransfer counts a transfer attempt.
func (m *Metrics) RecordTransfer(outcome string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(outcome).Inc()
}

// RecordCompletion counts a resolved chat.
func (m *Metrics) RecordCompletion() {
	if m == nil {
		return
	}
	m.completions.Inc()
}

// RecordEscalation counts an escalation by trigger ("customer", "keyword", "low_confidence", "ai_failure").
func (m *Metrics) RecordEscalation(trigger string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(trigger).Inc()
}

// RecordAIRequest counts an AI call.
func (m *Metrics) RecordAIRequest(outcome string) {
	if m == nil {
		return
	}
	m.aiRequests.WithLabelValues(outcome).Inc()
}

// AddConnection adjusts the live connection gauge for a role.
func (m *Metrics) AddConnection(role string, delta int) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(role).Add(float64(delta))
}
