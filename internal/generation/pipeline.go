package generation

import (
	"sync"
	"sync/atomic"

	"cdr-service/internal/calls"
)

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Attempted int64 `json:"attempted"`
	Accepted  int64 `json:"accepted"`
	Rejected  int64 `json:"rejected"`
	Staged    int   `json:"staged"`
}

// Pipeline owns the shared generation state: the conflict index and the staging queue.
//
// Submit runs conflict check, day split, mirroring and enqueue as one critical section:
// no two accepted calls may overlap on a shared party, whichever workers produced them.
type Pipeline struct {
	mu      sync.Mutex
	index   *ConflictIndex
	staging *StagingQueue
	metrics *Metrics

	attempted atomic.Int64
	accepted  atomic.Int64
}

func NewPipeline(staging *StagingQueue, metrics *Metrics) *Pipeline {
	if staging == nil {
		staging = NewStagingQueue()
	}
	return &Pipeline{index: NewConflictIndex(), staging: staging, metrics: metrics}
}

// Submit offers a candidate. It reports whether the candidate was accepted; a rejected
// candidate is dropped and is not an error.
func (p *Pipeline) Submit(c calls.Record) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempted.Add(1)
	if c.ServicedMSISDN == c.OtherMSISDN || !c.Finish.After(c.Start) {
		p.metrics.observeSubmit(false, 0)
		return false
	}
	if !p.index.TryAccept(c) {
		p.metrics.observeSubmit(false, 0)
		return false
	}

	segments := calls.SplitByDay(c)
	batch := make([]calls.Record, 0, 2*len(segments))
	batch = append(batch, segments...)
	batch = append(batch, calls.Mirror(segments)...)
	p.staging.PushAll(batch)

	p.accepted.Add(1)
	p.metrics.observeSubmit(true, len(batch))
	return true
}

func (p *Pipeline) Staging() *StagingQueue { return p.staging }

func (p *Pipeline) Stats() Stats {
	accepted := p.accepted.Load()
	attempted := p.attempted.Load()
	return Stats{
		Attempted: attempted,
		Accepted:  accepted,
		Rejected:  attempted - accepted,
		Staged:    p.staging.Len(),
	}
}
