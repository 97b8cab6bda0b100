package generation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"cdr-service/internal/calls"
	"cdr-service/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.October, 1, 12, 0, 0, 0, time.UTC)

func subscribers(n int) *storage.MemoryDirectory {
	msisdns := make([]string, n)
	for i := range msisdns {
		msisdns[i] = fmt.Sprintf("7900000%04d", i)
	}
	return storage.NewMemoryDirectory(msisdns...)
}

func runGeneration(t *testing.T, workers, subs int) (*Pipeline, *Orchestrator) {
	t.Helper()
	p := NewPipeline(nil, NewMetrics(nil))
	o := NewOrchestrator(p, subscribers(subs), workers,
		WorkerConfig{MinCalls: 300, MaxCalls: 400},
		WithSeed(42),
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, o.Initialize(context.Background()))
	return p, o
}

func TestOrchestrator_GeneratedRecordsHoldInvariants(t *testing.T) {
	p, o := runGeneration(t, 8, 10)
	require.True(t, o.IsReady())

	st := p.Stats()
	assert.GreaterOrEqual(t, st.Attempted, int64(8*300))
	assert.LessOrEqual(t, st.Attempted, int64(8*400))
	assert.Positive(t, st.Accepted)
	assert.Equal(t, st.Attempted, st.Accepted+st.Rejected)

	recs := p.Staging().PollBatch(st.Staged)
	require.Len(t, recs, st.Staged)

	windowStart := fixedNow.AddDate(-1, 0, 0)
	for _, r := range recs {
		require.NoError(t, r.Validate())
		require.Equal(t, calls.StatusNew, r.Status)
		require.False(t, r.Start.Before(windowStart))
		require.False(t, r.Finish.After(fixedNow))
	}

	// Non-overlap: every call appears once with each party as the serviced side.
	byParty := map[string][]calls.Record{}
	for _, r := range recs {
		byParty[r.ServicedMSISDN] = append(byParty[r.ServicedMSISDN], r)
	}
	for party, rs := range byParty {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Start.Before(rs[j].Start) })
		for i := 1; i < len(rs); i++ {
			require.Truef(t, rs[i-1].Finish.Before(rs[i].Start),
				"party %s has overlapping calls %v-%v and %v-%v",
				party, rs[i-1].Start, rs[i-1].Finish, rs[i].Start, rs[i].Finish)
		}
	}

	// Mirror: each segment has exactly one reciprocal.
	type key struct {
		serviced, other string
		callType        calls.CallType
		start, finish   int64
	}
	counts := map[key]int{}
	for _, r := range recs {
		counts[key{r.ServicedMSISDN, r.OtherMSISDN, r.CallType, r.Start.Unix(), r.Finish.Unix()}]++
	}
	for _, r := range recs {
		mirror := key{r.OtherMSISDN, r.ServicedMSISDN, r.CallType.Flip(), r.Start.Unix(), r.Finish.Unix()}
		require.Equal(t, 1, counts[mirror])
	}
}

func TestOrchestrator_SameSeedIsDeterministicForOneWorker(t *testing.T) {
	a, _ := runGeneration(t, 1, 5)
	b, _ := runGeneration(t, 1, 5)
	assert.Equal(t, a.Stats(), b.Stats())
}

func TestOrchestrator_RequiresTwoSubscribers(t *testing.T) {
	p := NewPipeline(nil, nil)
	o := NewOrchestrator(p, subscribers(1), 4, WorkerConfig{})

	err := o.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrNotEnoughSubscribers)
	assert.False(t, o.IsReady())
	assert.Zero(t, p.Stats().Attempted)
}

func TestOrchestrator_DirectoryFailureIsReported(t *testing.T) {
	dir := &storage.MemoryDirectory{Err: errors.New("db down")}
	o := NewOrchestrator(NewPipeline(nil, nil), dir, 2, WorkerConfig{})

	err := o.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.False(t, o.IsReady())
}

func TestOrchestrator_InitializeOnlyOnce(t *testing.T) {
	_, o := runGeneration(t, 2, 4)
	assert.ErrorIs(t, o.Initialize(context.Background()), ErrAlreadyInitialized)
}

func TestOrchestrator_CancelledContextIsNotReady(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := NewOrchestrator(NewPipeline(nil, nil), subscribers(5), 3, WorkerConfig{MinCalls: 10, MaxCalls: 10})

	err := o.Initialize(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, o.IsReady())
}

func TestNewWorker_RequiresTwoSubscribers(t *testing.T) {
	_, err := NewWorker(0, NewPipeline(nil, nil), []calls.Subscriber{{ID: 1, MSISDN: "1"}}, nil, WorkerConfig{}, nil, nil)
	assert.ErrorIs(t, err, ErrNotEnoughSubscribers)
}
