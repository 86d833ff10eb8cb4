package storage

import (
	"context"
	"sort"
	"sync"
)

type memoryStore struct {
	mu      sync.Mutex
	stats   map[string]StatRecord
	results []GameResult
}

// NewMemory returns an in-process store. Contents are lost on exit.
func NewMemory() Store {
	return &memoryStore{stats: map[string]StatRecord{}}
}

func (s *memoryStore) GetStat(_ context.Context, mode, id string) (StatRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.stats[statKey(mode, id)]
	return rec, ok, nil
}

func (s *memoryStore) PutStat(_ context.Context, rec StatRecord) error {
	s.mu.Lock()
	s.stats[statKey(rec.Mode, rec.EntityID)] = rec
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) ListStats(_ context.Context, mode string) ([]StatRecord, error) {
	s.mu.Lock()
	out := make([]StatRecord, 0, len(s.stats))
	for _, rec := range s.stats {
		if mode == "" || rec.Mode == mode {
			out = append(out, rec)
		}
	}
	s.mu.Unlock()
	sortStats(out)
	return out, nil
}

func (s *memoryStore) AppendResult(_ context.Context, r GameResult) error {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Close() error { return nil }

func sortStats(recs []StatRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Mode != recs[j].Mode {
			return recs[i].Mode < recs[j].Mode
		}
		return recs[i].EntityID < recs[j].EntityID
	})
}
