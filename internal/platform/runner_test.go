package platform

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"locinet/internal/evo"
	"locinet/internal/locus"
	"locinet/internal/network"
	"locinet/internal/scoring"
	"locinet/internal/storage"
)

func pairedLociFixture(t *testing.T) (*network.Graph, locus.Set) {
	t.Helper()
	b := network.NewBuilder()
	for _, e := range []struct {
		u, v string
		w    float64
	}{
		{"a", "x", 1.0},
		{"b", "y", 2.0},
		{"c", "z", 0.1},
	} {
		if err := b.AddEdge(e.u, e.v, e.w); err != nil {
			t.Fatalf("add edge: %v", err)
		}
	}
	loci, err := locus.NewSet([]locus.Locus{
		{Name: "L1", Genes: []string{"a", "b", "c"}},
		{Name: "L2", Genes: []string{"x", "y", "z"}},
	})
	if err != nil {
		t.Fatalf("new loci: %v", err)
	}
	return b.Build(), loci
}

func startedRunner(t *testing.T) (*Runner, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	runner := NewRunner(Config{Store: store})
	if err := runner.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return runner, store
}

func TestRunAnalysisImprovesPairedLoci(t *testing.T) {
	g, loci := pairedLociFixture(t)
	runner, store := startedRunner(t)

	result, err := runner.RunAnalysis(context.Background(), AnalysisConfig{
		RunID:          "paired",
		Graph:          g,
		Loci:           loci,
		PopulationSize: 100,
		MaxGenerations: 200,
		NullTrials:     50,
		Bins:           2,
		Workers:        2,
		Seed:           5,
	})
	if err != nil {
		t.Fatalf("run analysis: %v", err)
	}
	if result.Run.FinalMeanDensity < result.Run.InitialMeanDensity {
		t.Fatalf("final density %f below initial %f", result.Run.FinalMeanDensity, result.Run.InitialMeanDensity)
	}
	if result.Status != evo.StatusConverged && result.Status != evo.StatusMaxGenerations {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if len(result.FinalPopulation) != 100 {
		t.Fatalf("unexpected final population size: %d", len(result.FinalPopulation))
	}
	if len(result.TopSubnetworks) == 0 || result.TopSubnetworks[0].Rank != 1 {
		t.Fatalf("expected ranked subnetworks, got %+v", result.TopSubnetworks)
	}
	if len(result.GeneScores) != loci.GeneCount() {
		t.Fatalf("expected a score per gene, got %d", len(result.GeneScores))
	}
	if len(result.LocusGenes) != loci.Len() {
		t.Fatalf("expected top genes per locus, got %d groups", len(result.LocusGenes))
	}
	if result.Significance == nil {
		t.Fatal("expected significance")
	}
	if p := result.Significance.PValue; p < 0 || p > 1 {
		t.Fatalf("p-value out of range: %f", p)
	}
	if len(result.Significance.Distribution) != 50 {
		t.Fatalf("unexpected null trials: %d", len(result.Significance.Distribution))
	}

	ctx := context.Background()
	run, ok, err := store.GetRun(ctx, "paired")
	if err != nil || !ok {
		t.Fatalf("stored run: ok=%t err=%v", ok, err)
	}
	if run.PValue == nil || *run.PValue != result.Significance.PValue {
		t.Fatalf("stored run p-value mismatch: %+v", run)
	}
	history, ok, err := store.GetDensityHistory(ctx, "paired")
	if err != nil || !ok || len(history) != run.Generations+1 {
		t.Fatalf("stored history: len=%d ok=%t err=%v", len(history), ok, err)
	}
	snapshot, ok, err := store.GetPopulation(ctx, "paired")
	if err != nil || !ok || len(snapshot.Subnetworks) != 100 {
		t.Fatalf("stored population: ok=%t err=%v", ok, err)
	}
	if _, ok, err := store.GetSignificance(ctx, "paired"); err != nil || !ok {
		t.Fatalf("stored significance: ok=%t err=%v", ok, err)
	}
	if runner.ActiveRuns() != 0 {
		t.Fatalf("expected no active runs, got %d", runner.ActiveRuns())
	}
}

func TestRunAnalysisDeterministicForSeed(t *testing.T) {
	g, loci := pairedLociFixture(t)
	run := func(workers int) AnalysisResult {
		runner, _ := startedRunner(t)
		result, err := runner.RunAnalysis(context.Background(), AnalysisConfig{
			Graph:          g,
			Loci:           loci,
			PopulationSize: 40,
			MaxGenerations: 20,
			NullTrials:     20,
			Bins:           2,
			Workers:        workers,
			Seed:           11,
		})
		if err != nil {
			t.Fatalf("run analysis: %v", err)
		}
		return result
	}
	a, b := run(1), run(3)
	if a.Run.ID == b.Run.ID {
		t.Fatal("expected generated run ids to differ")
	}
	if a.Run.FinalMeanDensity != b.Run.FinalMeanDensity || a.Run.Generations != b.Run.Generations {
		t.Fatalf("runs differ: %+v vs %+v", a.Run, b.Run)
	}
	if a.Significance.PValue != b.Significance.PValue {
		t.Fatalf("p-values differ: %f vs %f", a.Significance.PValue, b.Significance.PValue)
	}
}

func TestRunAnalysisSkipSignificance(t *testing.T) {
	g, loci := pairedLociFixture(t)
	runner, store := startedRunner(t)
	result, err := runner.RunAnalysis(context.Background(), AnalysisConfig{
		RunID:            "quick",
		Graph:            g,
		Loci:             loci,
		PopulationSize:   10,
		MaxGenerations:   5,
		SkipSignificance: true,
	})
	if err != nil {
		t.Fatalf("run analysis: %v", err)
	}
	if result.Significance != nil || result.Run.PValue != nil {
		t.Fatal("expected no significance when skipped")
	}
	if _, ok, _ := store.GetSignificance(context.Background(), "quick"); ok {
		t.Fatal("expected no stored significance")
	}
}

func TestRunAnalysisScoresSampledPopulation(t *testing.T) {
	g, loci := pairedLociFixture(t)
	runner, _ := startedRunner(t)
	result, err := runner.RunAnalysis(context.Background(), AnalysisConfig{
		Graph:            g,
		Loci:             loci,
		PopulationSize:   60,
		MaxGenerations:   30,
		SkipSignificance: true,
		Seed:             7,
	})
	if err != nil {
		t.Fatalf("run analysis: %v", err)
	}

	want := toGeneScoreRecords(scoring.GeneScores(result.InitialPopulation, loci, g))
	if !reflect.DeepEqual(result.GeneScores, want) {
		t.Fatalf("gene scores not taken from the sampled population:\ngot  %+v\nwant %+v", result.GeneScores, want)
	}
	sampledTop := scoring.TopLocusGenes(scoring.GeneScores(result.InitialPopulation, loci, g), loci, DefaultGenesPerLocus)
	for i, group := range sampledTop {
		if !reflect.DeepEqual(result.LocusGenes[i], toGeneScoreRecords(group)) {
			t.Fatalf("locus %d genes not taken from the sampled population: %+v", i, result.LocusGenes[i])
		}
	}
	ranked := toRankedRecords(scoring.RankSubnetworks(result.FinalPopulation, DefaultTopSubnetworks))
	if !reflect.DeepEqual(result.TopSubnetworks, ranked) {
		t.Fatalf("top subnetworks not ranked from the evolved population: %+v", result.TopSubnetworks)
	}
}

func TestRunAnalysisZeroMutationRateDisablesMutation(t *testing.T) {
	g, loci := pairedLociFixture(t)
	runner, _ := startedRunner(t)
	off := 0
	result, err := runner.RunAnalysis(context.Background(), AnalysisConfig{
		Graph:            g,
		Loci:             loci,
		PopulationSize:   40,
		MaxGenerations:   10,
		MutationRate:     &off,
		SkipSignificance: true,
		Seed:             3,
	})
	if err != nil {
		t.Fatalf("run analysis: %v", err)
	}
	if len(result.GenerationDiagnostics) == 0 {
		t.Fatal("expected generation diagnostics")
	}
	for _, diag := range result.GenerationDiagnostics {
		if diag.Mutations != 0 {
			t.Fatalf("generation %d made %d mutations with rate 0", diag.Generation, diag.Mutations)
		}
	}
}

func TestRunAnalysisValidation(t *testing.T) {
	g, loci := pairedLociFixture(t)

	idle := NewRunner(Config{Store: storage.NewMemoryStore()})
	if _, err := idle.RunAnalysis(context.Background(), AnalysisConfig{Graph: g, Loci: loci}); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if err := NewRunner(Config{}).Init(context.Background()); err == nil {
		t.Fatal("expected missing store error")
	}

	runner, _ := startedRunner(t)
	if _, err := runner.RunAnalysis(context.Background(), AnalysisConfig{Loci: loci}); err == nil {
		t.Fatal("expected missing graph error")
	}
	var empty *locus.EmptyLociError
	if _, err := runner.RunAnalysis(context.Background(), AnalysisConfig{Graph: g}); !errors.As(err, &empty) {
		t.Fatalf("expected EmptyLociError, got %v", err)
	}
	tooHigh := 101
	if _, err := runner.RunAnalysis(context.Background(), AnalysisConfig{Graph: g, Loci: loci, MutationRate: &tooHigh}); err == nil {
		t.Fatal("expected mutation rate error")
	}
	if _, err := runner.RunAnalysis(context.Background(), AnalysisConfig{Graph: g, Loci: loci, PopulationSize: 2, Selection: "roulette"}); !errors.Is(err, evo.ErrSelectorNotFound) {
		t.Fatalf("expected ErrSelectorNotFound, got %v", err)
	}
}

func TestRunAnalysisCancelled(t *testing.T) {
	g, loci := pairedLociFixture(t)
	runner, _ := startedRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runner.RunAnalysis(ctx, AnalysisConfig{Graph: g, Loci: loci, PopulationSize: 10, SkipSignificance: true})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestRunnerResetDeletesRuns(t *testing.T) {
	g, loci := pairedLociFixture(t)
	runner, store := startedRunner(t)
	for _, id := range []string{"run-1", "run-2"} {
		if _, err := runner.RunAnalysis(context.Background(), AnalysisConfig{
			RunID:            id,
			Graph:            g,
			Loci:             loci,
			PopulationSize:   5,
			MaxGenerations:   2,
			SkipSignificance: true,
		}); err != nil {
			t.Fatalf("run %s: %v", id, err)
		}
	}
	if err := runner.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	runs, err := store.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no runs after reset, got %d", len(runs))
	}
	if !runner.Started() {
		t.Fatal("expected runner to be started after reset")
	}

	runner.Stop()
	if runner.Started() {
		t.Fatal("expected runner stopped")
	}
}
