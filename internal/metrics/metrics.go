// Package metrics provides Prometheus metrics for pairrelay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "pairrelay"

// Drop reasons for pairrelay_messages_dropped_total.
const (
	// ReasonNoPeer means no opposite-role slot existed for the identifier.
	ReasonNoPeer = "no_peer"
	// ReasonSlowConsumer means a subscriber's backlog was full and its
	// oldest pending message was evicted.
	ReasonSlowConsumer = "slow_consumer"
)

// Metrics holds all Prometheus metrics for pairrelay. All methods are
// safe to call on a nil receiver, so callers can pass nil to disable
// metrics entirely.
type Metrics struct {
	Registry *prometheus.Registry

	connectionsTotal   *prometheus.CounterVec
	activeConnections  *prometheus.GaugeVec
	connectionDuration *prometheus.HistogramVec
	messagesForwarded  *prometheus.CounterVec
	messagesDropped    *prometheus.CounterVec
	registryEntries    prometheus.Gauge
}

// New creates a new Metrics instance with a custom Prometheus registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total WebSocket connections accepted, by role.",
		}, []string{"role"}),

		activeConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of currently connected peers, by role.",
		}, []string{"role"}),

		connectionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connection_duration_seconds",
			Help:      "Duration of completed connections in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"role"}),

		messagesForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_forwarded_total",
			Help:      "Total messages relayed between roles, by direction.",
		}, []string{"direction"}),

		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Total messages dropped, by reason.",
		}, []string{"reason"}),

		registryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_entries",
			Help:      "Number of identifiers with at least one attached peer.",
		}),
	}

	reg.MustRegister(
		m.connectionsTotal,
		m.activeConnections,
		m.connectionDuration,
		m.messagesForwarded,
		m.messagesDropped,
		m.registryEntries,
	)

	return m
}

// ConnectionOpened records an accepted connection and increments the
// active gauge. Returns a ConnectionTracker to record the disconnect.
func (m *Metrics) ConnectionOpened(role string) *ConnectionTracker {
	if m == nil {
		return nil
	}
	m.connectionsTotal.WithLabelValues(role).Inc()
	m.activeConnections.WithLabelValues(role).Inc()
	return &ConnectionTracker{m: m, role: role}
}

// MessageForwarded records one relayed message for a direction label such
// as "device -> mobile".
func (m *Metrics) MessageForwarded(direction string) {
	if m == nil {
		return
	}
	m.messagesForwarded.WithLabelValues(direction).Inc()
}

// MessagesDropped records n dropped messages for a reason.
func (m *Metrics) MessagesDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.messagesDropped.WithLabelValues(reason).Add(float64(n))
}

// SetRegistryEntries sets the live identifier gauge.
func (m *Metrics) SetRegistryEntries(n int) {
	if m == nil {
		return
	}
	m.registryEntries.Set(float64(n))
}

// ConnectionTracker records the completion of a single connection.
// Safe to use when nil.
type ConnectionTracker struct {
	m    *Metrics
	role string
}

// Done records the disconnect of the tracked connection.
func (t *ConnectionTracker) Done(durationSec float64) {
	if t == nil {
		return
	}
	t.m.activeConnections.WithLabelValues(t.role).Dec()
	t.m.connectionDuration.WithLabelValues(t.role).Observe(durationSec)
}
