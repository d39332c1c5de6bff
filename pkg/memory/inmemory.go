package memory

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps records in process memory. Used for tests and for
// running the router without durable context.
type InMemoryStore struct {
	mu         sync.Mutex
	records    []ContextRecord
	maxRecords int
	now        func() time.Time
}

// NewInMemoryStore creates an unbounded in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{now: time.Now}
}

// NewBoundedInMemoryStore creates a store that keeps at most n records.
func NewBoundedInMemoryStore(n int) *InMemoryStore {
	return &InMemoryStore{maxRecords: n, now: time.Now}
}

// Append implements ContextStore.
func (s *InMemoryStore) Append(ctx context.Context, record ContextRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&record, s.now())
	s.records = append(s.records, record)
	if s.maxRecords > 0 && len(s.records) > s.maxRecords {
		s.records = s.records[len(s.records)-s.maxRecords:]
	}
	return nil
}

// Recent implements ContextStore.
func (s *InMemoryStore) Recent(ctx context.Context, limit int) ([]ContextRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		return nil, nil
	}
	if limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]ContextRecord, 0, limit)
	for i := len(s.records) - 1; i >= len(s.records)-limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

var _ ContextStore = (*InMemoryStore)(nil)
