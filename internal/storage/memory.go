package storage

import (
	"context"
	"errors"
	"sync"

	"locinet/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu           sync.RWMutex
	initialized  bool
	runs         map[string]model.RunRecord
	populations  map[string]model.PopulationSnapshot
	history      map[string][]float64
	diagnostics  map[string][]model.GenerationDiagnostics
	top          map[string][]model.RankedSubnetworkRecord
	geneScores   map[string][]model.GeneScoreRecord
	significance map[string]model.SignificanceRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.populations = make(map[string]model.PopulationSnapshot)
	s.history = make(map[string][]float64)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	s.top = make(map[string][]model.RankedSubnetworkRecord)
	s.geneScores = make(map[string][]model.GeneScoreRecord)
	s.significance = make(map[string]model.SignificanceRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if run.PValue != nil {
		p := *run.PValue
		run.PValue = &p
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRunsNewestFirst(runs)
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	delete(s.populations, id)
	delete(s.history, id)
	delete(s.diagnostics, id)
	delete(s.top, id)
	delete(s.geneScores, id)
	delete(s.significance, id)
	return nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, snapshot model.PopulationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.populations[snapshot.RunID] = clonePopulation(snapshot)
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, runID string) (model.PopulationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.populations[runID]
	if !ok {
		return model.PopulationSnapshot{}, false, nil
	}
	return clonePopulation(snapshot), true, nil
}

func (s *MemoryStore) SaveDensityHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetDensityHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.diagnostics[runID] = append([]model.GenerationDiagnostics(nil), diagnostics...)
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GenerationDiagnostics(nil), diagnostics...), true, nil
}

func (s *MemoryStore) SaveTopSubnetworks(_ context.Context, runID string, top []model.RankedSubnetworkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.top[runID] = cloneRanked(top)
	return nil
}

func (s *MemoryStore) GetTopSubnetworks(_ context.Context, runID string) ([]model.RankedSubnetworkRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	top, ok := s.top[runID]
	if !ok {
		return nil, false, nil
	}
	return cloneRanked(top), true, nil
}

func (s *MemoryStore) SaveGeneScores(_ context.Context, runID string, scores []model.GeneScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.geneScores[runID] = append([]model.GeneScoreRecord(nil), scores...)
	return nil
}

func (s *MemoryStore) GetGeneScores(_ context.Context, runID string) ([]model.GeneScoreRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scores, ok := s.geneScores[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GeneScoreRecord(nil), scores...), true, nil
}

func (s *MemoryStore) SaveSignificance(_ context.Context, record model.SignificanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.significance[record.RunID] = cloneSignificance(record)
	return nil
}

func (s *MemoryStore) GetSignificance(_ context.Context, runID string) (model.SignificanceRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.significance[runID]
	if !ok {
		return model.SignificanceRecord{}, false, nil
	}
	return cloneSignificance(record), true, nil
}

func clonePopulation(snapshot model.PopulationSnapshot) model.PopulationSnapshot {
	out := snapshot
	out.Subnetworks = make([]model.SubnetworkRecord, len(snapshot.Subnetworks))
	for i, s := range snapshot.Subnetworks {
		s.Nodes = append([]string(nil), s.Nodes...)
		out.Subnetworks[i] = s
	}
	return out
}

func cloneRanked(top []model.RankedSubnetworkRecord) []model.RankedSubnetworkRecord {
	out := make([]model.RankedSubnetworkRecord, len(top))
	for i, r := range top {
		r.Nodes = append([]string(nil), r.Nodes...)
		r.Pairs = append([]model.EdgeRecord(nil), r.Pairs...)
		out[i] = r
	}
	return out
}

func cloneSignificance(record model.SignificanceRecord) model.SignificanceRecord {
	out := record
	out.Distribution = append([]float64(nil), record.Distribution...)
	out.Histogram = append([]model.HistogramBucket(nil), record.Histogram...)
	return out
}
