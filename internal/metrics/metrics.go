package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mgoltzsche/online-vad/internal/model"
	"github.com/mgoltzsche/online-vad/internal/vad"
)

var _ vad.Observer = &Metrics{}

// Metrics contains the Prometheus metrics of the VAD sessions.
type Metrics struct {
	PassesTotal     prometheus.Counter
	PassFailures    prometheus.Counter
	PassDuration    prometheus.Histogram
	SegmentsTotal   prometheus.Counter
	SegmentDuration prometheus.Histogram
	DecoderResets   prometheus.Counter
	ActiveSessions  prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
}

// New creates the metrics and registers them with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		PassesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "vad_decode_passes_total",
			Help: "Total number of decode passes completed",
		}),
		PassFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vad_decode_pass_failures_total",
			Help: "Total number of decode passes that failed within a collaborator",
		}),
		PassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_decode_pass_duration_seconds",
			Help:    "Time spent within a decode pass",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		SegmentsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "vad_segments_total",
			Help: "Total number of finalized speech segments",
		}),
		SegmentDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_segment_duration_seconds",
			Help:    "Duration of the finalized speech segments",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		DecoderResets: f.NewCounter(prometheus.CounterOpts{
			Name: "vad_decoder_resets_total",
			Help: "Total number of decoder resets",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "vad_active_sessions",
			Help: "Current number of open VAD sessions",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vad_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "code"}),
	}
}

func (m *Metrics) PassCompleted(d time.Duration) {
	m.PassesTotal.Inc()
	m.PassDuration.Observe(d.Seconds())
}

func (m *Metrics) PassFailed() {
	m.PassFailures.Inc()
}

func (m *Metrics) SegmentEmitted(seg model.Segment) {
	m.SegmentsTotal.Inc()
	m.SegmentDuration.Observe(seg.Duration())
}

func (m *Metrics) DecoderReset() {
	m.DecoderResets.Inc()
}
