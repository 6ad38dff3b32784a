package storage

import (
	"encoding/json"
	"errors"
	"sort"

	"locinet/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps new records with the versions this build writes.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(run model.RunRecord) ([]byte, error) {
	return json.Marshal(run)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodePopulation(snapshot model.PopulationSnapshot) ([]byte, error) {
	return json.Marshal(snapshot)
}

func DecodePopulation(data []byte) (model.PopulationSnapshot, error) {
	var snapshot model.PopulationSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.PopulationSnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.PopulationSnapshot{}, err
	}
	return snapshot, nil
}

func EncodeSignificance(record model.SignificanceRecord) ([]byte, error) {
	return json.Marshal(record)
}

func DecodeSignificance(data []byte) (model.SignificanceRecord, error) {
	var record model.SignificanceRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.SignificanceRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.SignificanceRecord{}, err
	}
	return record, nil
}

func EncodeDensityHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeDensityHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func EncodeTopSubnetworks(top []model.RankedSubnetworkRecord) ([]byte, error) {
	return json.Marshal(top)
}

func DecodeTopSubnetworks(data []byte) ([]model.RankedSubnetworkRecord, error) {
	var top []model.RankedSubnetworkRecord
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	return top, nil
}

func EncodeGeneScores(scores []model.GeneScoreRecord) ([]byte, error) {
	return json.Marshal(scores)
}

func DecodeGeneScores(data []byte) ([]model.GeneScoreRecord, error) {
	var scores []model.GeneScoreRecord
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

// sortRunsNewestFirst orders runs by creation time, newest first, then id.
func sortRunsNewestFirst(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
}
