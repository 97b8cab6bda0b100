package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cdr-service/internal/calls"

	"github.com/prometheus/client_golang/prometheus"
)

const DefaultThreshold = 10

// Store is the part of the CDR store the exporter needs.
type Store interface {
	CountByStatus(ctx context.Context, status calls.Status) (int, error)
	FetchOldest(ctx context.Context, status calls.Status, limit int) ([]calls.Record, error)
	Save(ctx context.Context, rec calls.Record) (calls.Record, error)
}

// Publisher sends one batch as a single message.
type Publisher interface {
	Publish(ctx context.Context, destination, routingKey string, batch []calls.Transport) error
}

// Config names where batches go and how large they are.
type Config struct {
	Threshold   int
	Destination string
	RoutingKey  string
}

// Consumer publishes persisted NEW records in fixed-size batches and marks them CONSUMED.
//
// Delivery is at-least-once: a record whose status update fails stays NEW and is
// published again on a later cycle.
type Consumer struct {
	store   Store
	pub     Publisher
	cfg     Config
	log     *slog.Logger
	metrics *Metrics
}

func NewConsumer(store Store, pub Publisher, cfg Config, metrics *Metrics, log *slog.Logger) *Consumer {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{store: store, pub: pub, cfg: cfg, log: log, metrics: metrics}
}

// Export runs one cycle. Below the threshold it does nothing.
func (c *Consumer) Export(ctx context.Context) error {
	pending, err := c.store.CountByStatus(ctx, calls.StatusNew)
	if err != nil {
		return fmt.Errorf("export: count pending: %w", err)
	}
	if pending < c.cfg.Threshold {
		return nil
	}

	batch, err := c.store.FetchOldest(ctx, calls.StatusNew, c.cfg.Threshold)
	if err != nil {
		return fmt.Errorf("export: fetch batch: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	if err := c.pub.Publish(ctx, c.cfg.Destination, c.cfg.RoutingKey, calls.ToTransports(batch)); err != nil {
		c.metrics.observePublish(false, 0)
		return fmt.Errorf("export: publish batch of %d: %w", len(batch), err)
	}
	c.metrics.observePublish(true, len(batch))

	var errs []error
	for _, rec := range batch {
		rec.Status = calls.StatusConsumed
		if _, err := c.store.Save(ctx, rec); err != nil {
			c.metrics.observeMarkFailure()
			errs = append(errs, fmt.Errorf("export: mark cdr %d consumed: %w", rec.ID, err))
			continue
		}
		c.log.Debug("cdr consumed", "id", rec.ID, "serviced_msisdn", rec.ServicedMSISDN)
	}

	c.log.Info("cdr batch published",
		"destination", c.cfg.Destination,
		"routing_key", c.cfg.RoutingKey,
		"count", len(batch),
		"pending", pending-len(batch)+len(errs),
		"mark_failures", len(errs),
	)
	return errors.Join(errs...)
}

// Metrics are the exporter's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	batches      *prometheus.CounterVec
	records      prometheus.Counter
	markFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdr_export_batches_total",
			Help: "Export publish attempts by outcome",
		}, []string{"outcome"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cdr_export_records_total",
			Help: "Records included in successfully published batches",
		}),
		markFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cdr_export_mark_failures_total",
			Help: "Published records whose CONSUMED update failed (they will be re-published)",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.batches, m.records, m.markFailures)
	}
	return m
}

func (m *Metrics) observePublish(ok bool, n int) {
	if m == nil {
		return
	}
	if !ok {
		m.batches.WithLabelValues("error").Inc()
		return
	}
	m.batches.WithLabelValues("ok").Inc()
	m.records.Add(float64(n))
}

func (m *Metrics) observeMarkFailure() {
	if m == nil {
		return
	}
	m.markFailures.Inc()
}
