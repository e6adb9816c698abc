// Package prometheus provides Prometheus-backed implementations of the
// metrics interfaces. Every constructor returns the no-op implementation when
// the registry has not been initialized.
package prometheus

import (
	"github.com/marmos91/dittocraft/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// connectionMetrics is the Prometheus implementation of metrics.ConnectionMetrics.
type connectionMetrics struct {
	connectionsAccepted prometheus.Counter
	connectionsRejected *prometheus.CounterVec
	connectionsClosed   prometheus.Counter
	activeConnections   prometheus.Gauge
	packets             *prometheus.CounterVec
	bytes               *prometheus.CounterVec
	kicks               *prometheus.CounterVec
}

// NewConnectionMetrics creates a Prometheus-backed ConnectionMetrics.
func NewConnectionMetrics() metrics.ConnectionMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopConnectionMetrics()
	}

	reg := metrics.GetRegistry()

	return &connectionMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittocraft_connections_accepted_total",
				Help: "Total number of accepted client connections",
			},
		),
		connectionsRejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocraft_connections_rejected_total",
				Help: "Total number of connections refused before a session was created",
			},
			[]string{"reason"},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittocraft_connections_closed_total",
				Help: "Total number of closed client connections",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittocraft_connections_active",
				Help: "Current number of open client connections",
			},
		),
		packets: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocraft_packets_total",
				Help: "Total number of packets by direction and type",
			},
			[]string{"direction", "packet"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocraft_bytes_total",
				Help: "Total bytes transferred by direction",
			},
			[]string{"direction"},
		),
		kicks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocraft_kicks_total",
				Help: "Total number of server-initiated disconnects by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *connectionMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *connectionMetrics) RecordConnectionRejected(reason string) {
	m.connectionsRejected.WithLabelValues(reason).Inc()
}

func (m *connectionMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *connectionMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *connectionMetrics) RecordPacket(direction, name string) {
	m.packets.WithLabelValues(direction, name).Inc()
}

func (m *connectionMetrics) RecordBytes(direction string, n int) {
	m.bytes.WithLabelValues(direction).Add(float64(n))
}

func (m *connectionMetrics) RecordKick(reason string) {
	m.kicks.WithLabelValues(reason).Inc()
}
