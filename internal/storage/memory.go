package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"episkopos/internal/stats"
)

// MemoryStore keeps run records in a map for the lifetime of the
// process. The zero value needs Init before use.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]stats.RunRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runs == nil {
		s.runs = make(map[string]stats.RunRecord)
	}
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, rec stats.RunRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runs == nil {
		return errNotInitialized
	}
	s.runs[rec.RunID] = rec
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (stats.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.runs == nil {
		return stats.RunRecord{}, false, errNotInitialized
	}
	rec, ok := s.runs[runID]
	return rec, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]stats.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.runs == nil {
		return nil, errNotInitialized
	}
	records := make([]stats.RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAtUTC == records[j].CreatedAtUTC {
			return records[i].RunID > records[j].RunID
		}
		return records[i].CreatedAtUTC > records[j].CreatedAtUTC
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
