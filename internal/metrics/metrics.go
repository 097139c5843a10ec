// ABOUTME: Prometheus metrics for the playback pipeline
// ABOUTME: Counters and gauges for chunks, underruns, interruptions and lip sync
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the player.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Ingestion
	ChunksReceived *prometheus.CounterVec
	DecodeErrors   *prometheus.CounterVec
	StaleDropped   prometheus.Counter

	// Scheduling
	ChunksCommitted prometheus.Counter
	Underruns       prometheus.Counter
	Interruptions   *prometheus.CounterVec
	DeviceErrors    prometheus.Counter
	TargetDepth     prometheus.Gauge
	BufferDepth     prometheus.Gauge
	ChunkDuration   prometheus.Histogram

	// Lip sync
	MouthOpenness prometheus.Gauge

	// Transport
	Reconnects prometheus.Counter
}

// New creates and registers all metrics on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ChunksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicestage_chunks_received_total",
			Help: "Total number of audio chunks received, by wire format",
		}, []string{"format"}),
		DecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicestage_decode_errors_total",
			Help: "Total number of payloads dropped because they failed to decode",
		}, []string{"format"}),
		StaleDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicestage_stale_chunks_dropped_total",
			Help: "Total number of decoded chunks discarded because an interruption overtook them",
		}),
		ChunksCommitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicestage_chunks_committed_total",
			Help: "Total number of chunks committed to the output device",
		}),
		Underruns: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicestage_underruns_total",
			Help: "Total number of chained playback underruns",
		}),
		Interruptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicestage_interruptions_total",
			Help: "Total number of playback interruptions, by reason",
		}, []string{"reason"}),
		DeviceErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicestage_device_errors_total",
			Help: "Total number of output device open or resume failures",
		}),
		TargetDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicestage_jitter_target_depth",
			Help: "Current adaptive target buffer depth in chunks",
		}),
		BufferDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicestage_buffer_depth",
			Help: "Current number of chunks waiting in the sequencing buffer",
		}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicestage_chunk_duration_seconds",
			Help:    "Duration of committed audio chunks",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}),
		MouthOpenness: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicestage_mouth_openness",
			Help: "Most recent lip-sync mouth openness in [0, 1]",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicestage_reconnects_total",
			Help: "Total number of websocket reconnect attempts",
		}),
	}
}

// Handler serves the metrics registered on g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Received counts an inbound chunk
func (m *Metrics) Received(format string) {
	if m == nil {
		return
	}
	m.ChunksReceived.WithLabelValues(format).Inc()
}

// DecodeFailed counts a dropped payload
func (m *Metrics) DecodeFailed(format string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(format).Inc()
}

// Stale counts a decode discarded after an interruption
func (m *Metrics) Stale() {
	if m == nil {
		return
	}
	m.StaleDropped.Inc()
}

// Committed records a chunk handed to the device
func (m *Metrics) Committed(durationSeconds float64) {
	if m == nil {
		return
	}
	m.ChunksCommitted.Inc()
	m.ChunkDuration.Observe(durationSeconds)
}

// Underrun counts a chain underrun
func (m *Metrics) Underrun() {
	if m == nil {
		return
	}
	m.Underruns.Inc()
}

// Interrupted counts an interruption
func (m *Metrics) Interrupted(reason string) {
	if m == nil {
		return
	}
	m.Interruptions.WithLabelValues(reason).Inc()
}

// DeviceError counts a device failure
func (m *Metrics) DeviceError() {
	if m == nil {
		return
	}
	m.DeviceErrors.Inc()
}

// Reconnect counts a reconnect attempt
func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// SetDepths updates the depth gauges
func (m *Metrics) SetDepths(target, buffered int) {
	if m == nil {
		return
	}
	m.TargetDepth.Set(float64(target))
	m.BufferDepth.Set(float64(buffered))
}

// SetMouth updates the lip-sync gauge
func (m *Metrics) SetMouth(v float64) {
	if m == nil {
		return
	}
	m.MouthOpenness.Set(v)
}
