package generation

import (
	"sync"
	"testing"
	"time"

	"cdr-service/internal/calls"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagingQueue_PollsByFinishTime(t *testing.T) {
	q := NewStagingQueue()
	q.PushAll([]calls.Record{
		call("A", "B", clock(10, 0), clock(10, 30)),
		call("C", "D", clock(8, 0), clock(8, 10)),
		call("E", "F", clock(9, 0), clock(9, 45)),
	})

	var got []time.Time
	for {
		r, ok := q.PollOldest()
		if !ok {
			break
		}
		got = append(got, r.Finish)
	}
	assert.Equal(t, []time.Time{clock(8, 10), clock(9, 45), clock(10, 30)}, got)
	assert.Equal(t, 0, q.Len())
}

func TestStagingQueue_KeepsEqualFinishTimes(t *testing.T) {
	q := NewStagingQueue()
	q.PushAll([]calls.Record{
		call("A", "B", clock(10, 0), clock(10, 30)),
		call("B", "A", clock(10, 0), clock(10, 30)),
	})
	assert.Equal(t, 2, q.Len())
}

func TestStagingQueue_PollBatchStopsWhenEmpty(t *testing.T) {
	q := NewStagingQueue()
	q.PushAll([]calls.Record{call("A", "B", clock(10, 0), clock(10, 30))})

	assert.Len(t, q.PollBatch(4), 1)
	assert.Empty(t, q.PollBatch(4))
	assert.Nil(t, q.PollBatch(0))
}

func TestStagingQueue_ConcurrentPollsNeverDuplicate(t *testing.T) {
	q := NewStagingQueue()
	const n = 2000
	recs := make([]calls.Record, n)
	base := clock(0, 0)
	for i := range recs {
		start := base.Add(time.Duration(i) * time.Second)
		recs[i] = call("A", "B", start, start.Add(time.Second))
	}
	q.PushAll(recs)

	var (
		mu   sync.Mutex
		seen = map[time.Time]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				r, ok := q.PollOldest()
				if !ok {
					return
				}
				mu.Lock()
				seen[r.Start]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
	for start, c := range seen {
		require.Equalf(t, 1, c, "record starting at %v polled %d times", start, c)
	}
}
