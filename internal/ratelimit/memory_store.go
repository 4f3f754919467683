package ratelimit

import (
	"context"
	"sync"

	"clancha/internal/domain"
)

// MemoryStore keeps records for the life of the process. Records are reset
// in place by the Gate and never evicted.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]domain.RateRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]domain.RateRecord)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (domain.RateRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok, nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, prev *domain.RateRecord, next domain.RateRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[next.Key]
	switch {
	case prev == nil && ok:
		return false, nil
	case prev != nil && (!ok || !sameRecord(cur, *prev)):
		return false, nil
	}
	s.records[next.Key] = next
	return true, nil
}

// Len is the number of keys ever seen.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func sameRecord(a, b domain.RateRecord) bool {
	return a.Key == b.Key && a.Count == b.Count && a.WindowResetTime.Equal(b.WindowResetTime)
}
