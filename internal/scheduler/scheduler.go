// Package scheduler runs named periodic tasks. Each task has its own goroutine, so
// runs of one task never overlap; ticks that arrive while a run is in progress are
// dropped rather than queued.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrUnknownTask    = errors.New("scheduler: unknown task")
	ErrInvalidTask    = errors.New("scheduler: invalid task")
	ErrAlreadyStarted = errors.New("scheduler: already started")
	ErrNotRunning     = errors.New("scheduler: not running")
)

type Task struct {
	Name   string
	Period time.Duration
	Run    func(ctx context.Context) error
}

// Lease guards a task run across processes. Acquire returns false when another holder
// owns the task.
type Lease interface {
	Acquire(ctx context.Context, task string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, task string) error
}

type Option func(*Runner)

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

func WithLease(l Lease) Option {
	return func(r *Runner) { r.lease = l }
}

func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

type taskState struct {
	Task
	trigger chan struct{}
}

type Runner struct {
	tasks   []*taskState
	byName  map[string]*taskState
	lease   Lease
	log     *slog.Logger
	metrics *Metrics

	started atomic.Bool
	stopped atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(tasks []Task, opts ...Option) (*Runner, error) {
	r := &Runner{byName: make(map[string]*taskState, len(tasks)), log: slog.Default()}
	for _, t := range tasks {
		switch {
		case t.Name == "":
			return nil, fmt.Errorf("%w: empty name", ErrInvalidTask)
		case t.Period <= 0:
			return nil, fmt.Errorf("%w: %s: period must be > 0", ErrInvalidTask, t.Name)
		case t.Run == nil:
			return nil, fmt.Errorf("%w: %s: nil run func", ErrInvalidTask, t.Name)
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %s", ErrInvalidTask, t.Name)
		}
		ts := &taskState{Task: t, trigger: make(chan struct{}, 1)}
		r.tasks = append(r.tasks, ts)
		r.byName[t.Name] = ts
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start launches one loop per task. Loops end when ctx is done or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ctx, r.cancel = context.WithCancel(ctx)
	for _, ts := range r.tasks {
		r.wg.Add(1)
		go func(ts *taskState) {
			defer r.wg.Done()
			r.loop(ctx, ts)
		}(ts)
	}
	r.log.Info("scheduler started", "tasks", len(r.tasks))
	return nil
}

// Stop cancels in-flight runs and waits for every loop to return. Safe to call twice.
func (r *Runner) Stop() {
	if !r.started.Load() || !r.stopped.CompareAndSwap(false, true) {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.log.Info("scheduler stopped")
}

// Trigger asks for an immediate run of the named task. If a triggered run is already
// pending the request is coalesced into it.
func (r *Runner) Trigger(name string) error {
	ts, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	if !r.started.Load() || r.stopped.Load() {
		return ErrNotRunning
	}
	select {
	case ts.trigger <- struct{}{}:
	default:
	}
	return nil
}

func (r *Runner) Tasks() []string {
	out := make([]string, len(r.tasks))
	for i, ts := range r.tasks {
		out[i] = ts.Name
	}
	return out
}

func (r *Runner) loop(ctx context.Context, ts *taskState) {
	ticker := time.NewTicker(ts.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-ts.trigger:
		}
		r.runOnce(ctx, ts)

		// drop the tick that may have fired during the run
		select {
		case <-ticker.C:
		default:
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, ts *taskState) {
	if ctx.Err() != nil {
		return
	}
	if r.lease != nil {
		ok, err := r.lease.Acquire(ctx, ts.Name, ts.Period)
		if err != nil {
			r.log.Warn("task lease failed", "task", ts.Name, "error", err)
			r.metrics.observe(ts.Name, outcomeError, 0)
			return
		}
		if !ok {
			r.log.Debug("task held elsewhere", "task", ts.Name)
			r.metrics.observe(ts.Name, outcomeSkipped, 0)
			return
		}
		defer func() {
			if err := r.lease.Release(context.WithoutCancel(ctx), ts.Name); err != nil {
				r.log.Warn("task lease release failed", "task", ts.Name, "error", err)
			}
		}()
	}

	start := time.Now()
	err := safeRun(ctx, ts.Run)
	dur := time.Since(start)

	var p panicError
	switch {
	case errors.As(err, &p):
		r.log.Error("task panicked", "task", ts.Name, "panic", p.value)
		r.metrics.observe(ts.Name, outcomePanic, dur)
	case err != nil:
		r.log.Error("task failed", "task", ts.Name, "error", err, "duration_ms", float64(dur.Milliseconds()))
		r.metrics.observe(ts.Name, outcomeError, dur)
	default:
		r.metrics.observe(ts.Name, outcomeOK, dur)
	}
}

type panicError struct{ value any }

func (p panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicError{value: v}
		}
	}()
	return fn(ctx)
}
