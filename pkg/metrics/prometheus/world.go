package prometheus

import (
	"time"

	"github.com/marmos91/dittocraft/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// worldMetrics is the Prometheus implementation of metrics.WorldMetrics.
type worldMetrics struct {
	cachedChunks       prometheus.Gauge
	chunkLoads         *prometheus.CounterVec
	generationDuration prometheus.Histogram
	generationErrors   prometheus.Counter
	chunksEvicted      prometheus.Counter
}

// NewWorldMetrics creates a Prometheus-backed WorldMetrics.
func NewWorldMetrics() metrics.WorldMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopWorldMetrics()
	}

	reg := metrics.GetRegistry()

	return &worldMetrics{
		cachedChunks: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittocraft_world_chunks_cached",
				Help: "Number of chunks held in memory",
			},
		),
		chunkLoads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocraft_world_chunk_loads_total",
				Help: "Chunks brought into the cache by source",
			},
			[]string{"source"},
		),
		generationDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "dittocraft_world_chunk_generation_milliseconds",
				Help: "Time spent generating one chunk",
				Buckets: []float64{
					0.5, // 500us
					1,   // 1ms
					5,   // 5ms
					20,  // 20ms
					100, // 100ms
				},
			},
		),
		generationErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittocraft_world_chunk_generation_errors_total",
				Help: "Chunk generations that failed",
			},
		),
		chunksEvicted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittocraft_world_chunks_evicted_total",
				Help: "Chunks dropped from the cache",
			},
		),
	}
}

func (m *worldMetrics) SetCachedChunks(count int) {
	m.cachedChunks.Set(float64(count))
}

func (m *worldMetrics) RecordChunkLoad(source string) {
	m.chunkLoads.WithLabelValues(source).Inc()
}

func (m *worldMetrics) RecordChunkGeneration(duration time.Duration, err error) {
	m.generationDuration.Observe(float64(duration.Microseconds()) / 1000)
	if err != nil {
		m.generationErrors.Inc()
	}
}

func (m *worldMetrics) RecordChunksEvicted(count int) {
	m.chunksEvicted.Add(float64(count))
}
