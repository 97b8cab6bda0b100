package storage

import (
	"context"
	"errors"
	"sync"

	"cdr-service/internal/calls"
)

// MemoryRepo is an in-memory CDR store for tests and local runs.
// IDs are assigned in insertion order, which is also the FetchOldest order.
type MemoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	records []calls.Record
	byID    map[int64]int

	// FailSaveAll, when set, is returned by SaveAll without storing anything.
	FailSaveAll error
	// FailSave, when set, decides per record whether Save fails.
	FailSave func(r calls.Record) error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{byID: map[int64]int{}} }

func (r *MemoryRepo) Save(ctx context.Context, rec calls.Record) (calls.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSave != nil {
		if err := r.FailSave(rec); err != nil {
			return calls.Record{}, err
		}
	}
	return r.saveLocked(rec)
}

func (r *MemoryRepo) SaveAll(ctx context.Context, recs []calls.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSaveAll != nil {
		return r.FailSaveAll
	}
	for _, rec := range recs {
		if rec.ID != 0 {
			if _, ok := r.byID[rec.ID]; !ok {
				return ErrNotFound
			}
		}
	}
	for _, rec := range recs {
		if _, err := r.saveLocked(rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryRepo) saveLocked(rec calls.Record) (calls.Record, error) {
	if rec.ID == 0 {
		r.nextID++
		rec.ID = r.nextID
		r.byID[rec.ID] = len(r.records)
		r.records = append(r.records, rec)
		return rec, nil
	}
	i, ok := r.byID[rec.ID]
	if !ok {
		return calls.Record{}, ErrNotFound
	}
	r.records[i] = rec
	return rec, nil
}

func (r *MemoryRepo) CountByStatus(ctx context.Context, status calls.Status) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) FetchOldest(ctx context.Context, status calls.Status, limit int) ([]calls.Record, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Record, 0, limit)
	for _, rec := range r.records {
		if len(out) == limit {
			break
		}
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Records returns a copy of everything stored, in insertion order.
func (r *MemoryRepo) Records() []calls.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Record, len(r.records))
	copy(out, r.records)
	return out
}

// MemoryDirectory is a fixed subscriber list.
type MemoryDirectory struct {
	Subscribers []calls.Subscriber
	Err         error
}

// NewMemoryDirectory builds a directory from phone numbers; IDs follow argument order.
func NewMemoryDirectory(msisdns ...string) *MemoryDirectory {
	d := &MemoryDirectory{}
	for i, m := range msisdns {
		d.Subscribers = append(d.Subscribers, calls.Subscriber{ID: int64(i + 1), MSISDN: m})
	}
	return d
}

func (d *MemoryDirectory) ListAll(ctx context.Context) ([]calls.Subscriber, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	out := make([]calls.Subscriber, len(d.Subscribers))
	copy(out, d.Subscribers)
	return out, nil
}

var (
	ErrNotFound     = errors.New("storage: record not found")
	ErrInvalidLimit = errors.New("storage: limit must be > 0")
)
