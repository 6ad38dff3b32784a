//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"locinet/internal/model"

	_ "modernc.org/sqlite"
)

const (
	tablePopulations  = "populations"
	tableHistory      = "density_history"
	tableDiagnostics  = "generation_diagnostics"
	tableTop          = "top_subnetworks"
	tableGeneScores   = "gene_scores"
	tableSignificance = "significance"
)

var runTables = []string{tablePopulations, tableHistory, tableDiagnostics, tableTop, tableGeneScores, tableSignificance}

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at_utc, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at_utc = excluded.created_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.ID, run.CreatedAtUTC, run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, payload FROM runs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRunsNewestFirst(runs)
	return runs, nil
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return err
	}
	for _, table := range runTables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE run_id = ?`, table), id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SavePopulation(ctx context.Context, snapshot model.PopulationSnapshot) error {
	payload, err := EncodePopulation(snapshot)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, tablePopulations, snapshot.RunID, payload)
}

func (s *SQLiteStore) GetPopulation(ctx context.Context, runID string) (model.PopulationSnapshot, bool, error) {
	payload, ok, err := s.loadPayload(ctx, tablePopulations, runID)
	if err != nil || !ok {
		return model.PopulationSnapshot{}, ok, err
	}
	snapshot, err := DecodePopulation(payload)
	if err != nil {
		return model.PopulationSnapshot{}, false, fmt.Errorf("decode population %s: %w", runID, err)
	}
	return snapshot, true, nil
}

func (s *SQLiteStore) SaveDensityHistory(ctx context.Context, runID string, history []float64) error {
	payload, err := EncodeDensityHistory(history)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, tableHistory, runID, payload)
}

func (s *SQLiteStore) GetDensityHistory(ctx context.Context, runID string) ([]float64, bool, error) {
	payload, ok, err := s.loadPayload(ctx, tableHistory, runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	history, err := DecodeDensityHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode density history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *SQLiteStore) SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	payload, err := EncodeGenerationDiagnostics(diagnostics)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, tableDiagnostics, runID, payload)
}

func (s *SQLiteStore) GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	payload, ok, err := s.loadPayload(ctx, tableDiagnostics, runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	diagnostics, err := DecodeGenerationDiagnostics(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode diagnostics %s: %w", runID, err)
	}
	return diagnostics, true, nil
}

func (s *SQLiteStore) SaveTopSubnetworks(ctx context.Context, runID string, top []model.RankedSubnetworkRecord) error {
	payload, err := EncodeTopSubnetworks(top)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, tableTop, runID, payload)
}

func (s *SQLiteStore) GetTopSubnetworks(ctx context.Context, runID string) ([]model.RankedSubnetworkRecord, bool, error) {
	payload, ok, err := s.loadPayload(ctx, tableTop, runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	top, err := DecodeTopSubnetworks(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode top subnetworks %s: %w", runID, err)
	}
	return top, true, nil
}

func (s *SQLiteStore) SaveGeneScores(ctx context.Context, runID string, scores []model.GeneScoreRecord) error {
	payload, err := EncodeGeneScores(scores)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, tableGeneScores, runID, payload)
}

func (s *SQLiteStore) GetGeneScores(ctx context.Context, runID string) ([]model.GeneScoreRecord, bool, error) {
	payload, ok, err := s.loadPayload(ctx, tableGeneScores, runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	scores, err := DecodeGeneScores(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode gene scores %s: %w", runID, err)
	}
	return scores, true, nil
}

func (s *SQLiteStore) SaveSignificance(ctx context.Context, record model.SignificanceRecord) error {
	payload, err := EncodeSignificance(record)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, tableSignificance, record.RunID, payload)
}

func (s *SQLiteStore) GetSignificance(ctx context.Context, runID string) (model.SignificanceRecord, bool, error) {
	payload, ok, err := s.loadPayload(ctx, tableSignificance, runID)
	if err != nil || !ok {
		return model.SignificanceRecord{}, ok, err
	}
	record, err := DecodeSignificance(payload)
	if err != nil {
		return model.SignificanceRecord{}, false, fmt.Errorf("decode significance %s: %w", runID, err)
	}
	return record, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// savePayload upserts a per-run blob. table is always one of runTables.
func (s *SQLiteStore) savePayload(ctx context.Context, table, runID string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, table), runID, payload)
	return err
}

func (s *SQLiteStore) loadPayload(ctx context.Context, table, runID string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, fmt.Sprintf(`SELECT payload FROM %s WHERE run_id = ?`, table), runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`); err != nil {
		return err
	}
	for _, table := range runTables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT PRIMARY KEY,
				payload BLOB NOT NULL
			);
		`, table)); err != nil {
			return err
		}
	}
	return nil
}
