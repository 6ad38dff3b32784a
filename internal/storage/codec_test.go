package storage

import (
	"errors"
	"testing"

	"locinet/internal/model"
)

func TestRunCodecChecksVersion(t *testing.T) {
	p := 0.01
	run := model.RunRecord{VersionedRecord: CurrentVersion(), ID: "run-1", Status: "converged", PValue: &p}
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode run: %v", err)
	}
	decoded, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if decoded.ID != run.ID || decoded.PValue == nil || *decoded.PValue != p {
		t.Fatalf("unexpected run: %+v", decoded)
	}

	run.CodecVersion = CurrentCodecVersion + 1
	data, err = EncodeRun(run)
	if err != nil {
		t.Fatalf("encode run: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestPopulationCodecChecksVersion(t *testing.T) {
	snapshot := model.PopulationSnapshot{RunID: "run-1"}
	data, err := EncodePopulation(snapshot)
	if err != nil {
		t.Fatalf("encode population: %v", err)
	}
	if _, err := DecodePopulation(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch for unversioned snapshot, got %v", err)
	}
}

func TestSignificanceCodecRoundTrip(t *testing.T) {
	record := model.SignificanceRecord{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-1",
		BinMode:         "quantile",
		Trials:          2,
		PValue:          0.5,
		Distribution:    []float64{0.2, 0.4},
		Histogram:       []model.HistogramBucket{{Lower: 0.2, Upper: 0.4, Count: 2}},
	}
	data, err := EncodeSignificance(record)
	if err != nil {
		t.Fatalf("encode significance: %v", err)
	}
	decoded, err := DecodeSignificance(data)
	if err != nil {
		t.Fatalf("decode significance: %v", err)
	}
	if decoded.BinMode != "quantile" || len(decoded.Histogram) != 1 || decoded.Distribution[1] != 0.4 {
		t.Fatalf("unexpected significance: %+v", decoded)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodeDensityHistory([]byte("{")); err == nil {
		t.Fatal("expected history decode error")
	}
	if _, err := DecodeGeneScores([]byte("[1]")); err == nil {
		t.Fatal("expected gene score decode error")
	}
	if _, err := DecodeTopSubnetworks([]byte("nope")); err == nil {
		t.Fatal("expected top subnetwork decode error")
	}
	if _, err := DecodeGenerationDiagnostics([]byte("{}")); err == nil {
		t.Fatal("expected diagnostics decode error")
	}
}
