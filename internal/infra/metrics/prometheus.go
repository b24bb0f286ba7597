package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"voice-call/internal/domain"
)

var states = []domain.PipelineState{
	domain.StateIdle,
	domain.StateArmed,
	domain.StateRecording,
	domain.StateDraining,
}

// Metrics contains all Prometheus metrics for the voice pipeline
type Metrics struct {
	// Signal metrics
	FramesProcessed prometheus.Counter
	Loudness        prometheus.Histogram

	// Segmentation metrics
	PipelineState    *prometheus.GaugeVec
	Utterances       *prometheus.CounterVec
	UtteranceSize    prometheus.Histogram
	UtteranceSeconds prometheus.Histogram

	// Exchange metrics
	ExchangeRequests *prometheus.CounterVec
	ExchangeDuration prometheus.Histogram
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FramesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicecall_frames_processed_total",
			Help: "Total number of analysis frames read from the capture device",
		}),
		Loudness: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicecall_frame_loudness",
			Help:    "RMS loudness of analysis frames",
			Buckets: []float64{0.005, 0.01, 0.02, 0.04, 0.08, 0.16, 0.32, 0.64},
		}),

		PipelineState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voicecall_pipeline_state",
			Help: "Current pipeline state (1 for the active state)",
		}, []string{"state"}),
		Utterances: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicecall_utterances_total",
			Help: "Utterances closed by the segmenter, by outcome",
		}, []string{"outcome"}),
		UtteranceSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicecall_utterance_size_bytes",
			Help:    "Encoded size of sealed utterances",
			Buckets: prometheus.ExponentialBuckets(4096, 2, 10), // 4KB to 2MB
		}),
		UtteranceSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicecall_utterance_duration_seconds",
			Help:    "Duration of sealed utterances",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
		}),

		ExchangeRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicecall_exchange_requests_total",
			Help: "Utterance exchanges with the remote service, by status",
		}, []string{"status"}),
		ExchangeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicecall_exchange_duration_seconds",
			Help:    "Round trip time of utterance exchanges",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1 minute
		}),
	}
}

// ObserveLevel records the loudness of one frame
func (m *Metrics) ObserveLevel(level float64) {
	m.FramesProcessed.Inc()
	m.Loudness.Observe(level)
}

// SetState marks state as the active pipeline state
func (m *Metrics) SetState(state domain.PipelineState) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.PipelineState.WithLabelValues(s.String()).Set(v)
	}
}

// RecordUtterance records a closed utterance. Discarded utterances carry no size.
func (m *Metrics) RecordUtterance(outcome string, sizeBytes int, duration time.Duration) {
	m.Utterances.WithLabelValues(outcome).Inc()
	if sizeBytes > 0 {
		m.UtteranceSize.Observe(float64(sizeBytes))
		m.UtteranceSeconds.Observe(duration.Seconds())
	}
}

// RecordExchange records one exchange round trip
func (m *Metrics) RecordExchange(status string, duration time.Duration) {
	m.ExchangeRequests.WithLabelValues(status).Inc()
	m.ExchangeDuration.Observe(duration.Seconds())
}
