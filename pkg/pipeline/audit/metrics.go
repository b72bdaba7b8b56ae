package audit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsEmitter counts pipeline outcomes as prometheus metrics.
type MetricsEmitter struct {
	runs       *prometheus.CounterVec
	promotions *prometheus.CounterVec
	rejections *prometheus.CounterVec
	duration   prometheus.Histogram

	started map[string]time.Time
}

// NewMetricsEmitter registers the pipeline metrics on reg.
func NewMetricsEmitter(reg prometheus.Registerer) *MetricsEmitter {
	m := &MetricsEmitter{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relearn_runs_total",
			Help: "Retraining runs, by final result.",
		}, []string{"result"}),
		promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relearn_promotions_total",
			Help: "Candidate versions promoted to deployed, by family.",
		}, []string{"family"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relearn_rejections_total",
			Help: "Candidate versions rejected by safety validation, by family.",
		}, []string{"family"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relearn_run_duration_seconds",
			Help:    "Wall time of retraining runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		started: map[string]time.Time{},
	}
	reg.MustRegister(m.runs, m.promotions, m.rejections, m.duration)
	return m
}

// Emit implements Emitter. Single-goroutine use is assumed, matching the
// one-run-at-a-time pipeline.
func (m *MetricsEmitter) Emit(ev Event) {
	switch ev.Kind {
	case RunStarted:
		m.started[ev.RunId] = ev.At
	case Promoted:
		m.promotions.WithLabelValues(ev.Family).Inc()
	case RejectedModel:
		m.rejections.WithLabelValues(ev.Family).Inc()
	case RunFinalized:
		m.runs.WithLabelValues("done").Inc()
		m.observeDuration(ev)
	case RunAborted:
		m.runs.WithLabelValues("aborted").Inc()
		m.observeDuration(ev)
	}
}

func (m *MetricsEmitter) observeDuration(ev Event) {
	start, ok := m.started[ev.RunId]
	if !ok {
		return
	}
	delete(m.started, ev.RunId)
	m.duration.Observe(ev.At.Sub(start).Seconds())
}
