package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/dittocraft/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// gameMetrics is the Prometheus implementation of metrics.GameMetrics.
type gameMetrics struct {
	onlinePlayers prometheus.Gauge
	entities      prometheus.Gauge
	logins        *prometheus.CounterVec
	chat          *prometheus.CounterVec
	tickDuration  prometheus.Histogram
}

// NewGameMetrics creates a Prometheus-backed GameMetrics.
func NewGameMetrics() metrics.GameMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopGameMetrics()
	}

	reg := metrics.GetRegistry()

	return &gameMetrics{
		onlinePlayers: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittocraft_players_online",
				Help: "Number of players in the Play state",
			},
		),
		entities: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittocraft_entities",
				Help: "Number of live entities",
			},
		),
		logins: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocraft_logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		chat: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocraft_chat_messages_total",
				Help: "Chat lines received, split by whether they were commands",
			},
			[]string{"command"},
		),
		tickDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "dittocraft_tick_duration_milliseconds",
				Help: "Time spent running one game tick",
				Buckets: []float64{
					0.1, // 100us
					1,   // 1ms
					10,  // 10ms
					50,  // one tick at 20 TPS
				},
			},
		),
	}
}

func (m *gameMetrics) SetOnlinePlayers(count int) {
	m.onlinePlayers.Set(float64(count))
}

func (m *gameMetrics) SetEntities(count int) {
	m.entities.Set(float64(count))
}

func (m *gameMetrics) RecordLogin(result string) {
	m.logins.WithLabelValues(result).Inc()
}

func (m *gameMetrics) RecordChat(command bool) {
	m.chat.WithLabelValues(strconv.FormatBool(command)).Inc()
}

func (m *gameMetrics) RecordTick(duration time.Duration) {
	m.tickDuration.Observe(float64(duration.Microseconds()) / 1000)
}
