package generation

import (
	"time"

	"cdr-service/internal/calls"

	"github.com/google/btree"
)

const btreeDegree = 16

// interval is an accepted call as seen by one of its parties.
type interval struct {
	start  time.Time
	finish time.Time
	seq    uint64
}

func byFinish(a, b interval) bool {
	if !a.finish.Equal(b.finish) {
		return a.finish.Before(b.finish)
	}
	return a.seq < b.seq
}

// ConflictIndex answers whether a candidate call collides with an already accepted call
// of either party. Intervals are kept per party in a B-tree ordered by finish time, so a
// lookup only visits intervals finishing at or after the candidate's start.
//
// ConflictIndex is not safe for concurrent use; Pipeline serializes access.
type ConflictIndex struct {
	byParty map[string]*btree.BTreeG[interval]
	seq     uint64
}

func NewConflictIndex() *ConflictIndex {
	return &ConflictIndex{byParty: map[string]*btree.BTreeG[interval]{}}
}

// TryAccept checks both parties of c and, when neither has a conflicting call, records c
// under both. Rejection leaves the index untouched.
func (x *ConflictIndex) TryAccept(c calls.Record) bool {
	if x.conflicts(c.ServicedMSISDN, c.Start, c.Finish) || x.conflicts(c.OtherMSISDN, c.Start, c.Finish) {
		return false
	}
	x.seq++
	iv := interval{start: c.Start, finish: c.Finish, seq: x.seq}
	x.tree(c.ServicedMSISDN).ReplaceOrInsert(iv)
	x.tree(c.OtherMSISDN).ReplaceOrInsert(iv)
	return true
}

// Len returns the number of accepted calls.
func (x *ConflictIndex) Len() int { return int(x.seq) }

func (x *ConflictIndex) conflicts(party string, start, finish time.Time) bool {
	t, ok := x.byParty[party]
	if !ok {
		return false
	}
	hit := false
	// seq 0 sorts before every stored interval with the same finish.
	t.AscendGreaterOrEqual(interval{finish: start}, func(iv interval) bool {
		if calls.Overlaps(iv.start, iv.finish, start, finish) {
			hit = true
			return false
		}
		return true
	})
	return hit
}

func (x *ConflictIndex) tree(party string) *btree.BTreeG[interval] {
	t, ok := x.byParty[party]
	if !ok {
		t = btree.NewG(btreeDegree, byFinish)
		x.byParty[party] = t
	}
	return t
}
