package generation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"cdr-service/internal/calls"
)

const DefaultDrainBatchMax = 5

// BatchSaver persists a batch atomically: either every record is stored or none is.
type BatchSaver interface {
	SaveAll(ctx context.Context, recs []calls.Record) error
}

// Drainer moves a small random batch of the oldest staged records into the store on
// every tick once generation is ready.
//
// A failed save puts the whole batch back into staging; SaveAll must be all-or-nothing.
type Drainer struct {
	staging  *StagingQueue
	store    BatchSaver
	ready    <-chan struct{}
	batchMax int
	metrics  *Metrics
	log      *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewDrainer(staging *StagingQueue, store BatchSaver, ready <-chan struct{}, batchMax int, rng *rand.Rand, metrics *Metrics, log *slog.Logger) *Drainer {
	if batchMax <= 0 {
		batchMax = DefaultDrainBatchMax
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if log == nil {
		log = slog.Default()
	}
	return &Drainer{
		staging:  staging,
		store:    store,
		ready:    ready,
		batchMax: batchMax,
		metrics:  metrics,
		log:      log,
		rng:      rng,
	}
}

// Drain runs one tick. It is a no-op until ready is closed.
func (d *Drainer) Drain(ctx context.Context) error {
	select {
	case <-d.ready:
	default:
		return nil
	}

	d.mu.Lock()
	n := d.rng.IntN(d.batchMax)
	d.mu.Unlock()

	batch := d.staging.PollBatch(n)
	if len(batch) == 0 {
		return nil
	}

	if err := d.store.SaveAll(ctx, batch); err != nil {
		d.staging.PushAll(batch)
		d.metrics.observeDrain(0, len(batch))
		return fmt.Errorf("generation: save staged batch of %d: %w", len(batch), err)
	}
	d.metrics.observeDrain(len(batch), 0)
	d.log.Debug("staged records persisted", "count", len(batch), "remaining", d.staging.Len())
	return nil
}
