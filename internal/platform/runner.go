package platform

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"locinet/internal/evo"
	"locinet/internal/locus"
	"locinet/internal/logging"
	"locinet/internal/model"
	"locinet/internal/network"
	"locinet/internal/scoring"
	"locinet/internal/stats"
	"locinet/internal/storage"
	"locinet/internal/subnet"
)

const (
	DefaultPopulationSize = 5000
	DefaultBins           = 128
	DefaultTopSubnetworks = 10
	DefaultGenesPerLocus  = 3
	histogramBuckets      = 20
)

var ErrNotStarted = errors.New("runner is not initialized")

type Config struct {
	Store  storage.Store
	Logger *log.Logger
}

// AnalysisConfig describes one end-to-end analysis. Zero values take the
// package defaults. A nil MutationRate takes evo.DefaultMutationRate; a rate of
// 0 disables mutation.
type AnalysisConfig struct {
	RunID                string
	Graph                *network.Graph
	Loci                 locus.Set
	PopulationSize       int
	MaxGenerations       int
	ConvergenceThreshold float64
	MutationRate         *int
	Selection            string
	SelectionScale       float64
	TournamentSize       int
	BinMode              subnet.BinMode
	Bins                 int
	NullTrials           int
	SkipSignificance     bool
	TopSubnetworks       int
	GenesPerLocus        int
	Workers              int
	Seed                 int64
}

type AnalysisResult struct {
	Run                   model.RunRecord
	Status                evo.Status
	DensityHistory        []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	InitialPopulation     subnet.Population
	FinalPopulation       subnet.Population
	TopSubnetworks        []model.RankedSubnetworkRecord
	GeneScores            []model.GeneScoreRecord
	LocusGenes            [][]model.GeneScoreRecord
	CrossLocusNetwork     []model.EdgeRecord
	Significance          *model.SignificanceRecord
}

// Runner owns the store and tracks in-flight analyses so Stop can cancel them.
type Runner struct {
	store  storage.Store
	logger *log.Logger

	mu      sync.Mutex
	started bool
	active  map[string]context.CancelFunc
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		store:  cfg.Store,
		logger: logging.OrDiscard(cfg.Logger),
		active: make(map[string]context.CancelFunc),
	}
}

func (r *Runner) Init(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("store is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	if err := r.store.Init(ctx); err != nil {
		return err
	}
	r.started = true
	return nil
}

func (r *Runner) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Stop cancels every in-flight analysis. The runner must be re-initialized
// before further use.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cancel := range r.active {
		cancel()
		delete(r.active, id)
	}
	r.started = false
}

// Reset stops the runner, deletes every stored run and re-initializes.
func (r *Runner) Reset(ctx context.Context) error {
	r.Stop()
	if err := r.Init(ctx); err != nil {
		return err
	}
	runs, err := r.store.ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, run := range runs {
		if err := r.store.DeleteRun(ctx, run.ID); err != nil {
			return fmt.Errorf("delete run %s: %w", run.ID, err)
		}
	}
	r.logger.Info("store reset", "runs", len(runs))
	return nil
}

func (r *Runner) ActiveRuns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// RunAnalysis samples an initial population, evolves it, scores and ranks the
// result, optionally tests it against a degree-matched null, and persists
// everything under one run id.
func (r *Runner) RunAnalysis(ctx context.Context, cfg AnalysisConfig) (AnalysisResult, error) {
	cfg, err := normalizeAnalysisConfig(cfg)
	if err != nil {
		return AnalysisResult{}, err
	}
	ctx, release, err := r.track(ctx, cfg.RunID)
	if err != nil {
		return AnalysisResult{}, err
	}
	defer release()

	logger := r.logger.With("run_id", cfg.RunID)
	started := time.Now().UTC()

	selector, err := evo.ResolveSelector(cfg.Selection, evo.SelectorOptions{Scale: cfg.SelectionScale, TournamentSize: cfg.TournamentSize})
	if err != nil {
		return AnalysisResult{}, err
	}

	seeds := rand.New(rand.NewSource(cfg.Seed))
	initial, err := subnet.SampleLocusPopulation(seeds, cfg.PopulationSize, cfg.Graph, cfg.Loci)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("sample initial population: %w", err)
	}
	monitorSeed := seeds.Int63()
	nullSeed := seeds.Int63()
	initialMean, err := subnet.MeanDensity(initial)
	if err != nil {
		return AnalysisResult{}, err
	}
	logger.Info("initial population sampled",
		"population", len(initial),
		"loci", cfg.Loci.Len(),
		"genes", cfg.Loci.GeneCount(),
		"mean_density", initialMean,
	)

	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Graph:                cfg.Graph,
		Loci:                 cfg.Loci,
		Mutation:             evo.LocusMutation{Loci: cfg.Loci, Rate: *cfg.MutationRate},
		Selector:             selector,
		PopulationSize:       cfg.PopulationSize,
		ConvergenceThreshold: cfg.ConvergenceThreshold,
		MaxGenerations:       cfg.MaxGenerations,
		Workers:              cfg.Workers,
		Seed:                 monitorSeed,
		Logger:               logger,
	})
	if err != nil {
		return AnalysisResult{}, err
	}
	evolved, err := monitor.Run(ctx, initial)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("evolve population: %w", err)
	}
	finalMean, err := subnet.MeanDensity(evolved.FinalPopulation)
	if err != nil {
		return AnalysisResult{}, err
	}

	// Gene scores come from the sampled population; the evolved one is ranked.
	scores := scoring.GeneScores(initial, cfg.Loci, cfg.Graph)
	locusGenes := scoring.TopLocusGenes(scores, cfg.Loci, cfg.GenesPerLocus)
	chosen := make([]string, 0, cfg.Loci.Len()*cfg.GenesPerLocus)
	for _, group := range locusGenes {
		for _, s := range group {
			chosen = append(chosen, s.Gene)
		}
	}
	ranked := scoring.RankSubnetworks(evolved.FinalPopulation, cfg.TopSubnetworks)

	result := AnalysisResult{
		Status:                evolved.Status,
		DensityHistory:        evolved.DensityHistory,
		GenerationDiagnostics: toModelDiagnostics(evolved.GenerationDiagnostics),
		InitialPopulation:     initial,
		FinalPopulation:       evolved.FinalPopulation,
		TopSubnetworks:        toRankedRecords(ranked),
		GeneScores:            toGeneScoreRecords(scores),
		CrossLocusNetwork:     toEdgeRecords(scoring.CrossLocusNetwork(chosen, cfg.Graph, cfg.Loci)),
	}
	for _, group := range locusGenes {
		result.LocusGenes = append(result.LocusGenes, toGeneScoreRecords(group))
	}

	if !cfg.SkipSignificance {
		sig, err := r.significance(ctx, cfg, evolved.FinalPopulation, nullSeed)
		if err != nil {
			return AnalysisResult{}, err
		}
		result.Significance = &sig
		logger.Info("significance computed",
			"trials", sig.Trials,
			"reference_density", sig.ReferenceDensity,
			"null_mean", sig.NullMean,
			"p_value", sig.PValue,
		)
	}

	result.Run = model.RunRecord{
		VersionedRecord:    storage.CurrentVersion(),
		ID:                 cfg.RunID,
		Status:             string(evolved.Status),
		Seed:               cfg.Seed,
		PopulationSize:     cfg.PopulationSize,
		LociCount:          cfg.Loci.Len(),
		GeneCount:          cfg.Loci.GeneCount(),
		GraphGenes:         cfg.Graph.Len(),
		GraphEdges:         cfg.Graph.EdgeCount(),
		Generations:        evolved.Generations,
		InitialMeanDensity: initialMean,
		FinalMeanDensity:   finalMean,
		CreatedAtUTC:       started.Format(time.RFC3339Nano),
	}
	if result.Significance != nil {
		p := result.Significance.PValue
		result.Run.PValue = &p
	}

	if err := r.persist(ctx, result); err != nil {
		return AnalysisResult{}, err
	}
	logger.Info("analysis complete",
		"status", evolved.Status,
		"generations", evolved.Generations,
		"initial_mean_density", initialMean,
		"final_mean_density", finalMean,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return result, nil
}

func (r *Runner) significance(ctx context.Context, cfg AnalysisConfig, reference subnet.Population, seed int64) (model.SignificanceRecord, error) {
	bins, err := subnet.BuildBins(cfg.Graph, cfg.BinMode, cfg.Bins)
	if err != nil {
		return model.SignificanceRecord{}, err
	}
	null, err := stats.NullDistribution(ctx, stats.NullConfig{
		Graph:     cfg.Graph,
		Bins:      bins,
		Reference: reference,
		Trials:    cfg.NullTrials,
		Seed:      seed,
		Workers:   cfg.Workers,
	})
	if err != nil {
		return model.SignificanceRecord{}, fmt.Errorf("null distribution: %w", err)
	}
	sig, err := stats.EmpiricalPValue(reference, null)
	if err != nil {
		return model.SignificanceRecord{}, err
	}
	histogram := stats.Histogram(null, histogramBuckets)
	buckets := make([]model.HistogramBucket, 0, len(histogram))
	for _, b := range histogram {
		buckets = append(buckets, model.HistogramBucket{Lower: b.Lower, Upper: b.Upper, Count: b.Count})
	}
	return model.SignificanceRecord{
		VersionedRecord:  storage.CurrentVersion(),
		RunID:            cfg.RunID,
		BinMode:          string(cfg.BinMode),
		Bins:             cfg.Bins,
		Trials:           sig.Trials,
		ReferenceDensity: sig.ReferenceDensity,
		PValue:           sig.PValue,
		Below:            sig.Below,
		AtLeast:          sig.AtLeast,
		NullMean:         sig.NullMean,
		NullStdDev:       sig.NullStdDev,
		NullMin:          sig.NullMin,
		NullMax:          sig.NullMax,
		Distribution:     null,
		Histogram:        buckets,
	}, nil
}

func (r *Runner) persist(ctx context.Context, result AnalysisResult) error {
	runID := result.Run.ID
	if err := r.store.SaveRun(ctx, result.Run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	snapshot := model.PopulationSnapshot{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Generation:      result.Run.Generations,
		Subnetworks:     toSubnetworkRecords(result.FinalPopulation),
	}
	if err := r.store.SavePopulation(ctx, snapshot); err != nil {
		return fmt.Errorf("save population: %w", err)
	}
	if err := r.store.SaveDensityHistory(ctx, runID, result.DensityHistory); err != nil {
		return fmt.Errorf("save density history: %w", err)
	}
	if err := r.store.SaveGenerationDiagnostics(ctx, runID, result.GenerationDiagnostics); err != nil {
		return fmt.Errorf("save diagnostics: %w", err)
	}
	if err := r.store.SaveTopSubnetworks(ctx, runID, result.TopSubnetworks); err != nil {
		return fmt.Errorf("save top subnetworks: %w", err)
	}
	if err := r.store.SaveGeneScores(ctx, runID, result.GeneScores); err != nil {
		return fmt.Errorf("save gene scores: %w", err)
	}
	if result.Significance != nil {
		if err := r.store.SaveSignificance(ctx, *result.Significance); err != nil {
			return fmt.Errorf("save significance: %w", err)
		}
	}
	return nil
}

// track registers a cancellable context for runID. The returned release must
// be called when the run ends.
func (r *Runner) track(ctx context.Context, runID string) (context.Context, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil, nil, ErrNotStarted
	}
	if _, exists := r.active[runID]; exists {
		return nil, nil, fmt.Errorf("run already active: %s", runID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.active[runID] = cancel
	release := func() {
		cancel()
		r.mu.Lock()
		delete(r.active, runID)
		r.mu.Unlock()
	}
	return runCtx, release, nil
}

func normalizeAnalysisConfig(cfg AnalysisConfig) (AnalysisConfig, error) {
	if cfg.Graph == nil {
		return cfg, fmt.Errorf("interaction graph is required")
	}
	if cfg.Loci.Len() == 0 {
		return cfg, &locus.EmptyLociError{Index: -1}
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.PopulationSize <= 0 {
		cfg.PopulationSize = DefaultPopulationSize
	}
	if cfg.MutationRate == nil {
		rate := evo.DefaultMutationRate
		cfg.MutationRate = &rate
	}
	if *cfg.MutationRate < 0 || *cfg.MutationRate > 100 {
		return cfg, fmt.Errorf("mutation rate must be within [0, 100]: %d", *cfg.MutationRate)
	}
	if cfg.BinMode == "" {
		cfg.BinMode = subnet.BinModeQuantile
	}
	if cfg.Bins <= 0 {
		cfg.Bins = DefaultBins
	}
	if cfg.NullTrials <= 0 {
		cfg.NullTrials = stats.DefaultNullTrials
	}
	if cfg.TopSubnetworks <= 0 {
		cfg.TopSubnetworks = DefaultTopSubnetworks
	}
	if cfg.GenesPerLocus <= 0 {
		cfg.GenesPerLocus = DefaultGenesPerLocus
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return cfg, nil
}
