package generation

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"cdr-service/internal/calls"
)

const (
	DefaultMinCalls    = 1000
	DefaultMaxCalls    = 2000
	DefaultMaxDuration = 5 * time.Hour
)

// WorkerConfig bounds what a worker invents.
type WorkerConfig struct {
	// MinCalls and MaxCalls bound the per-worker attempt budget (inclusive).
	MinCalls int
	MaxCalls int
	// MaxDuration is the longest call; durations are drawn from (0, MaxDuration].
	MaxDuration time.Duration
	// Location defines calendar days for splitting. Defaults to UTC.
	Location *time.Location
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	out := c
	if out.MinCalls <= 0 {
		out.MinCalls = DefaultMinCalls
	}
	if out.MaxCalls < out.MinCalls {
		out.MaxCalls = out.MinCalls
	}
	if out.MaxDuration < time.Second {
		out.MaxDuration = DefaultMaxDuration
	}
	if out.Location == nil {
		out.Location = time.UTC
	}
	return out
}

// Worker invents candidate calls for one year back from now and submits them.
// Each worker owns its RNG, so workers never contend on anything but the pipeline.
type Worker struct {
	id          int
	pipeline    *Pipeline
	subscribers []calls.Subscriber
	rng         *rand.Rand
	cfg         WorkerConfig
	now         func() time.Time
	log         *slog.Logger
}

// WorkerReport summarizes one worker run.
type WorkerReport struct {
	Budget    int
	Attempted int
	Accepted  int
}

// NewWorker requires at least two subscribers; with fewer, picking two distinct parties
// would never terminate.
func NewWorker(id int, p *Pipeline, subscribers []calls.Subscriber, rng *rand.Rand, cfg WorkerConfig, now func() time.Time, log *slog.Logger) (*Worker, error) {
	if len(subscribers) < 2 {
		return nil, ErrNotEnoughSubscribers
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		id:          id,
		pipeline:    p,
		subscribers: subscribers,
		rng:         rng,
		cfg:         cfg.withDefaults(),
		now:         now,
		log:         log,
	}, nil
}

// Run spends the attempt budget. Rejected candidates count against the budget and are
// not retried. Run returns early with ctx.Err() when ctx is cancelled.
func (w *Worker) Run(ctx context.Context) (WorkerReport, error) {
	budget := w.cfg.MinCalls + w.rng.IntN(w.cfg.MaxCalls-w.cfg.MinCalls+1)
	report := WorkerReport{Budget: budget}

	w.log.Debug("worker started", "worker", w.id, "budget", budget)

	windowEnd := w.now().In(w.cfg.Location).Truncate(time.Second)
	windowStart := windowEnd.AddDate(-1, 0, 0)

	for i := 0; i < budget; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return report, err
			}
		}
		c := w.candidate(windowStart, windowEnd)
		report.Attempted++
		if w.pipeline.Submit(c) {
			report.Accepted++
		}
	}

	w.log.Debug("worker finished", "worker", w.id, "attempted", report.Attempted, "accepted", report.Accepted)
	return report, nil
}

func (w *Worker) candidate(windowStart, windowEnd time.Time) calls.Record {
	callType := calls.CallTypeIncoming
	if w.rng.IntN(2) == 1 {
		callType = calls.CallTypeOutgoing
	}

	n := len(w.subscribers)
	a := w.rng.IntN(n)
	b := w.rng.IntN(n)
	for b == a {
		b = w.rng.IntN(n)
	}

	maxSec := int64(w.cfg.MaxDuration / time.Second)
	durSec := 1 + w.rng.Int64N(maxSec)

	spanSec := int64(windowEnd.Sub(windowStart) / time.Second)
	var offset int64
	if room := spanSec - durSec; room > 0 {
		offset = w.rng.Int64N(room + 1)
	}
	start := windowStart.Add(time.Duration(offset) * time.Second)

	return calls.Record{
		CallType:       callType,
		ServicedMSISDN: w.subscribers[a].MSISDN,
		OtherMSISDN:    w.subscribers[b].MSISDN,
		Start:          start,
		Finish:         start.Add(time.Duration(durSec) * time.Second),
		Status:         calls.StatusNew,
	}
}
