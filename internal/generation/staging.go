package generation

import (
	"sync"

	"cdr-service/internal/calls"

	"github.com/google/btree"
)

type staged struct {
	rec calls.Record
	seq uint64
}

func stagedLess(a, b staged) bool {
	if !a.rec.Finish.Equal(b.rec.Finish) {
		return a.rec.Finish.Before(b.rec.Finish)
	}
	return a.seq < b.seq
}

// StagingQueue holds accepted records until they are persisted, ordered by finish time.
// It is unbounded and safe for concurrent use.
type StagingQueue struct {
	mu   sync.Mutex
	tree *btree.BTreeG[staged]
	seq  uint64
}

func NewStagingQueue() *StagingQueue {
	return &StagingQueue{tree: btree.NewG(btreeDegree, stagedLess)}
}

// PushAll inserts records in one locked section.
func (q *StagingQueue) PushAll(recs []calls.Record) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, r := range recs {
		q.seq++
		q.tree.ReplaceOrInsert(staged{rec: r, seq: q.seq})
	}
}

// PollOldest removes and returns the record with the earliest finish time.
func (q *StagingQueue) PollOldest() (calls.Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.tree.DeleteMin()
	if !ok {
		return calls.Record{}, false
	}
	return s.rec, true
}

// PollBatch removes up to n oldest records.
func (q *StagingQueue) PollBatch(n int) []calls.Record {
	if n <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]calls.Record, 0, n)
	for len(out) < n {
		s, ok := q.tree.DeleteMin()
		if !ok {
			break
		}
		out = append(out, s.rec)
	}
	return out
}

func (q *StagingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tree.Len()
}
