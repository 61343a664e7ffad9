package repository

import (
	"context"
	"sync"
)

// MemoryRecorder keeps match history in process memory.
type MemoryRecorder struct {
	records []MatchRecord
	mu      sync.RWMutex
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{records: make([]MatchRecord, 0)}
}

func (r *MemoryRecorder) RecordMatch(_ context.Context, rec MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *MemoryRecorder) RecentMatches(_ context.Context, limit int) ([]MatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.records) {
		limit = len(r.records)
	}
	out := make([]MatchRecord, 0, limit)
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}

func (r *MemoryRecorder) Close() error {
	return nil
}
