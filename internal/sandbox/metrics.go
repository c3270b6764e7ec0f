package sandbox

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics is the sandbox's tool-execution CounterVec/HistogramVec pair.
// Registered once with the default registry; every Sandbox shares the same
// collectors, since promauto panics on duplicate registration.
type metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	timeouts *prometheus.CounterVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *metrics
)

func newMetrics() *metrics {
	metricsOnce.Do(func() {
		sharedMetrics = registerMetrics()
	})
	return sharedMetrics
}

func registerMetrics() *metrics {
	return &metrics{
		runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boxedin",
			Subsystem: "sandbox",
			Name:      "runs_total",
			Help:      "Number of sandboxed tool runs, labeled by language, backend, and outcome.",
		}, []string{"language", "backend", "outcome"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "boxedin",
			Subsystem: "sandbox",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of sandboxed tool runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"language", "backend"}),
		timeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boxedin",
			Subsystem: "sandbox",
			Name:      "timeouts_total",
			Help:      "Number of sandboxed tool runs killed for exceeding the configured timeout.",
		}, []string{"language", "backend"}),
	}
}

func (m *metrics) observe(language, backend string, result RunResult, duration time.Duration) {
	outcome := "ok"
	switch {
	case result.TimedOut:
		outcome = "timeout"
		m.timeouts.WithLabelValues(language, backend).Inc()
	case result.Code != 0:
		outcome = "error"
	}
	m.runs.WithLabelValues(language, backend, outcome).Inc()
	m.duration.WithLabelValues(language, backend).Observe(duration.Seconds())
}
