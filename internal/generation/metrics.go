package generation

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Prometheus collectors of the generation side.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	attempted prometheus.Counter
	accepted  prometheus.Counter
	rejected  prometheus.Counter
	staged    prometheus.Gauge
	persisted prometheus.Counter
	restaged  prometheus.Counter
	batchSize prometheus.Histogram
}

// NewMetrics builds the collectors and registers them on reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cdr_generation_attempted_total",
			Help: "Candidate calls submitted by generation workers",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cdr_generation_accepted_total",
			Help: "Candidate calls that passed the conflict check",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cdr_generation_rejected_total",
			Help: "Candidate calls dropped because a party was already busy",
		}),
		staged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cdr_staging_queue_depth",
			Help: "Records waiting in the staging queue",
		}),
		persisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cdr_staging_persisted_total",
			Help: "Records handed to the store by the staging drainer",
		}),
		restaged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cdr_staging_restaged_total",
			Help: "Records put back into staging after a failed save",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cdr_staging_batch_size",
			Help:    "Distribution of drained batch sizes",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 16},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.attempted, m.accepted, m.rejected, m.staged, m.persisted, m.restaged, m.batchSize)
	}
	return m
}

func (m *Metrics) observeSubmit(accepted bool, records int) {
	if m == nil {
		return
	}
	m.attempted.Inc()
	if !accepted {
		m.rejected.Inc()
		return
	}
	m.accepted.Inc()
	m.staged.Add(float64(records))
}

func (m *Metrics) observeDrain(persisted, restaged int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(persisted + restaged))
	m.persisted.Add(float64(persisted))
	m.restaged.Add(float64(restaged))
	m.staged.Sub(float64(persisted))
}
