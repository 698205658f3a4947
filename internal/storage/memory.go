package storage

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	analyses    map[string]AnalysisRecord
	models      map[string]ModelInfoRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.analyses = make(map[string]AnalysisRecord)
	s.models = make(map[string]ModelInfoRecord)
	return nil
}

func (s *MemoryStore) SaveAnalysis(_ context.Context, record AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analyses[record.RunID] = copyAnalysis(record)
	return nil
}

func (s *MemoryStore) GetAnalysis(_ context.Context, runID string) (AnalysisRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.analyses[runID]
	if !ok {
		return AnalysisRecord{}, false, nil
	}
	return copyAnalysis(record), true, nil
}

func (s *MemoryStore) ListAnalyses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.analyses))
	for id := range s.analyses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) SaveModelInfo(_ context.Context, record ModelInfoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.models[record.Name] = copyModelInfo(record)
	return nil
}

func (s *MemoryStore) GetModelInfo(_ context.Context, name string) (ModelInfoRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.models[name]
	if !ok {
		return ModelInfoRecord{}, false, nil
	}
	return copyModelInfo(record), true, nil
}

func copyAnalysis(record AnalysisRecord) AnalysisRecord {
	copied := record
	copied.Levels = append([]float64(nil), record.Levels...)
	copied.Results = append(copied.Results[:0:0], record.Results...)
	for i := range copied.Results {
		copied.Results[i].Measurements = append(copied.Results[i].Measurements[:0:0], record.Results[i].Measurements...)
		for j := range copied.Results[i].Measurements {
			copied.Results[i].Measurements[j].Values = append([]float64(nil), record.Results[i].Measurements[j].Values...)
		}
	}
	return copied
}

func copyModelInfo(record ModelInfoRecord) ModelInfoRecord {
	copied := record
	copied.Layers = append(copied.Layers[:0:0], record.Layers...)
	if record.Metadata != nil {
		copied.Metadata = make(map[string]string, len(record.Metadata))
		for k, v := range record.Metadata {
			copied.Metadata[k] = v
		}
	}
	return copied
}
