package hostop

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wippyai/profiling-runtime/resource"
)

const (
	resultOK    = "ok"
	resultError = "error"
	resultFatal = "fatal"

	resultInterrupted = "interrupted"
)

var _ resource.Observer = (*Metrics)(nil)

// Metrics records host operation outcomes. A nil *Metrics records nothing.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	live     *prometheus.GaugeVec
}

// NewMetrics registers the host operation metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		calls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "profiling_hostop_calls_total",
			Help: "Total number of host operation calls by outcome.",
		}, []string{"op", "result"}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profiling_hostop_duration_seconds",
			Help:    "Time spent inside host operations.",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.01},
		}, []string{"op"}),
		live: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "profiling_resources_live",
			Help: "Number of live resources in execution tables.",
		}, []string{"type"}),
	}
}

func (m *Metrics) observeCall(op, result string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, result).Inc()
}

func (m *Metrics) observeDuration(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// OnResourceEvent tracks live resources per type.
func (m *Metrics) OnResourceEvent(e resource.Event) {
	switch e.Event {
	case resource.EventCreated:
		m.live.WithLabelValues(e.Type.Name).Inc()
	case resource.EventDropped, resource.EventMoved:
		m.live.WithLabelValues(e.Type.Name).Dec()
	}
}
