package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomePanic   = "panic"
	outcomeSkipped = "skipped"
)

// Metrics counts task runs by outcome. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdr_scheduler_runs_total",
			Help: "Periodic task runs by outcome",
		}, []string{"task", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cdr_scheduler_run_seconds",
			Help:    "Duration of periodic task runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.duration)
	}
	return m
}

func (m *Metrics) observe(task, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(task, outcome).Inc()
	if outcome != outcomeSkipped {
		m.duration.WithLabelValues(task).Observe(d.Seconds())
	}
}
