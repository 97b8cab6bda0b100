package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"cdr-service/internal/calls"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotEnoughSubscribers = errors.New("generation: at least two subscribers are required")
	ErrAlreadyInitialized   = errors.New("generation: already initialized")
)

// Directory lists the known subscribers.
type Directory interface {
	ListAll(ctx context.Context) ([]calls.Subscriber, error)
}

// Orchestrator runs the initial generation: it forks the workers, joins all of them and
// only then signals readiness.
type Orchestrator struct {
	pipeline  *Pipeline
	directory Directory
	workers   int
	cfg       WorkerConfig
	seed      *uint64
	now       func() time.Time
	log       *slog.Logger

	started   atomic.Bool
	ready     chan struct{}
	readyOnce sync.Once
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSeed makes every worker RNG deterministic. Worker i uses the PCG stream (seed, i).
func WithSeed(seed uint64) Option {
	return func(o *Orchestrator) { o.seed = &seed }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func NewOrchestrator(p *Pipeline, dir Directory, workers int, cfg WorkerConfig, opts ...Option) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	o := &Orchestrator{
		pipeline:  p,
		directory: dir,
		workers:   workers,
		cfg:       cfg,
		now:       time.Now,
		log:       slog.Default(),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ready is closed once every worker of the initial run has returned.
func (o *Orchestrator) Ready() <-chan struct{} { return o.ready }

// IsReady is a non-blocking check of Ready.
func (o *Orchestrator) IsReady() bool {
	select {
	case <-o.ready:
		return true
	default:
		return false
	}
}

// Initialize blocks until all workers finish. It must be called once.
// The subscriber directory is read once and shared read-only by all workers.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	if !o.started.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}

	subs, err := o.directory.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("generation: list subscribers: %w", err)
	}
	if len(subs) < 2 {
		return ErrNotEnoughSubscribers
	}

	runID := uuid.NewString()
	log := o.log.With("run_id", runID)
	log.Info("generation started", "workers", o.workers, "subscribers", len(subs))
	began := time.Now()

	workers := make([]*Worker, o.workers)
	for i := range workers {
		w, err := NewWorker(i, o.pipeline, subs, o.rngFor(i), o.cfg, o.now, log)
		if err != nil {
			return err
		}
		workers[i] = w
	}

	reports := make([]WorkerReport, len(workers))
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range workers {
		g.Go(func() error {
			r, err := w.Run(gctx)
			reports[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}

	o.readyOnce.Do(func() { close(o.ready) })

	budget := 0
	for _, r := range reports {
		budget += r.Budget
	}
	st := o.pipeline.Stats()
	log.Info("data generated",
		"budget", budget,
		"attempted", st.Attempted,
		"accepted", st.Accepted,
		"rejected", st.Rejected,
		"staged", st.Staged,
		"duration_ms", time.Since(began).Milliseconds(),
	)
	return nil
}

func (o *Orchestrator) rngFor(i int) *rand.Rand {
	if o.seed == nil {
		return nil
	}
	return rand.New(rand.NewPCG(*o.seed, uint64(i)))
}
