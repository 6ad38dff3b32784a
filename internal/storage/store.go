package storage

import (
	"context"

	"locinet/internal/model"
)

// Store defines transaction-like persistence operations for analysis runs.
// Per-run payloads are keyed by run id and replaced on every save.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	DeleteRun(ctx context.Context, id string) error
	SavePopulation(ctx context.Context, snapshot model.PopulationSnapshot) error
	GetPopulation(ctx context.Context, runID string) (model.PopulationSnapshot, bool, error)
	SaveDensityHistory(ctx context.Context, runID string, history []float64) error
	GetDensityHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveTopSubnetworks(ctx context.Context, runID string, top []model.RankedSubnetworkRecord) error
	GetTopSubnetworks(ctx context.Context, runID string) ([]model.RankedSubnetworkRecord, bool, error)
	SaveGeneScores(ctx context.Context, runID string, scores []model.GeneScoreRecord) error
	GetGeneScores(ctx context.Context, runID string) ([]model.GeneScoreRecord, bool, error)
	SaveSignificance(ctx context.Context, record model.SignificanceRecord) error
	GetSignificance(ctx context.Context, runID string) (model.SignificanceRecord, bool, error)
}
