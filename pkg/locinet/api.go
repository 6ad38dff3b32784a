// Package locinet runs locus subnetwork analyses and queries their stored
// results.
package locinet

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"locinet/internal/evo"
	"locinet/internal/ingest"
	"locinet/internal/logging"
	"locinet/internal/model"
	"locinet/internal/platform"
	"locinet/internal/stats"
	"locinet/internal/storage"
	"locinet/internal/subnet"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "locinet.db"
	defaultRunsLimit    = 20
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *log.Logger
}

type Client struct {
	store  storage.Store
	runner *platform.Runner
	logger *log.Logger

	artifactsDir string
	exportsDir   string
}

// RunRequest configures one analysis. LociPath points at a GMT file and
// InteractionsPath at a gene1/gene2/weight table. MutationRate is a percentage;
// nil keeps the default and 0 turns mutation off.
type RunRequest struct {
	RunID                string
	LociPath             string
	InteractionsPath     string
	Population           int
	MaxGenerations       int
	ConvergenceThreshold float64
	MutationRate         *int
	Selection            string
	SelectionScale       float64
	TournamentSize       int
	BinMode              string
	Bins                 int
	NullTrials           int
	SkipSignificance     bool
	TopSubnetworks       int
	GenesPerLocus        int
	Workers              int
	Seed                 int64
}

type RunSummary struct {
	RunID              string
	ArtifactsDir       string
	Status             string
	Generations        int
	LociCount          int
	GeneCount          int
	GraphGenes         int
	GraphEdges         int
	InitialMeanDensity float64
	FinalMeanDensity   float64
	DensityHistory     []float64
	LocusGenes         [][]model.GeneScoreRecord
	TopSubnetworks     []model.RankedSubnetworkRecord
	PValue             *float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Status           string
	Seed             int64
	Population       int
	LociCount        int
	Generations      int
	FinalMeanDensity float64
	PValue           *float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

// RunQuery selects a stored run by id or the most recent one. Limit caps the
// number of returned rows; 0 means all.
type RunQuery struct {
	RunID  string
	Latest bool
	Limit  int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	logger := logging.OrDiscard(opts.Logger)
	return &Client{
		store:        store,
		runner:       platform.NewRunner(platform.Config{Store: store, Logger: logger}),
		logger:       logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	c.runner.Stop()
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.runner.Init(ctx)
}

// Reset deletes every stored run. Artifact directories are left in place.
func (c *Client) Reset(ctx context.Context) error {
	return c.runner.Reset(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.LociPath == "" {
		return RunSummary{}, errors.New("loci file is required")
	}
	if req.InteractionsPath == "" {
		return RunSummary{}, errors.New("interactions file is required")
	}
	if req.Population < 0 || req.MaxGenerations < 0 || req.NullTrials < 0 || req.Bins < 0 || req.Workers < 0 {
		return RunSummary{}, errors.New("numeric run options must be >= 0")
	}
	if req.ConvergenceThreshold < 0 {
		return RunSummary{}, errors.New("convergence threshold must be >= 0")
	}
	binMode, err := subnet.ParseBinMode(req.BinMode)
	if err != nil {
		return RunSummary{}, err
	}

	loci, err := ingest.LoadLociFile(req.LociPath)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load loci: %w", err)
	}
	graph, err := ingest.LoadInteractionsFile(req.InteractionsPath)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load interactions: %w", err)
	}
	c.logger.Info("inputs loaded",
		"loci", loci.Len(),
		"genes", loci.GeneCount(),
		"graph_genes", graph.Len(),
		"graph_edges", graph.EdgeCount(),
	)

	if err := c.runner.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	result, err := c.runner.RunAnalysis(ctx, platform.AnalysisConfig{
		RunID:                req.RunID,
		Graph:                graph,
		Loci:                 loci,
		PopulationSize:       req.Population,
		MaxGenerations:       req.MaxGenerations,
		ConvergenceThreshold: req.ConvergenceThreshold,
		MutationRate:         req.MutationRate,
		Selection:            req.Selection,
		SelectionScale:       req.SelectionScale,
		TournamentSize:       req.TournamentSize,
		BinMode:              binMode,
		Bins:                 req.Bins,
		NullTrials:           req.NullTrials,
		SkipSignificance:     req.SkipSignificance,
		TopSubnetworks:       req.TopSubnetworks,
		GenesPerLocus:        req.GenesPerLocus,
		Workers:              req.Workers,
		Seed:                 req.Seed,
	})
	if err != nil {
		return RunSummary{}, err
	}
	run := result.Run

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:                run.ID,
			LociPath:             req.LociPath,
			InteractionsPath:     req.InteractionsPath,
			PopulationSize:       run.PopulationSize,
			MaxGenerations:       req.MaxGenerations,
			ConvergenceThreshold: req.ConvergenceThreshold,
			MutationRate:         effectiveMutationRate(req.MutationRate),
			Selection:            req.Selection,
			SelectionScale:       req.SelectionScale,
			TournamentSize:       req.TournamentSize,
			BinMode:              string(binMode),
			Bins:                 req.Bins,
			NullTrials:           req.NullTrials,
			SkipSignificance:     req.SkipSignificance,
			TopSubnetworks:       req.TopSubnetworks,
			GenesPerLocus:        req.GenesPerLocus,
			Seed:                 run.Seed,
			Workers:              req.Workers,
		},
		Status:                run.Status,
		DensityHistory:        result.DensityHistory,
		GenerationDiagnostics: result.GenerationDiagnostics,
		TopSubnetworks:        result.TopSubnetworks,
		GeneScores:            result.GeneScores,
		CrossLocusNetwork:     result.CrossLocusNetwork,
		Significance:          result.Significance,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            run.ID,
		Status:           run.Status,
		PopulationSize:   run.PopulationSize,
		LociCount:        run.LociCount,
		Generations:      run.Generations,
		Seed:             run.Seed,
		Workers:          req.Workers,
		FinalMeanDensity: run.FinalMeanDensity,
		PValue:           run.PValue,
		CreatedAtUTC:     run.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:              run.ID,
		ArtifactsDir:       filepath.Clean(runDir),
		Status:             run.Status,
		Generations:        run.Generations,
		LociCount:          run.LociCount,
		GeneCount:          run.GeneCount,
		GraphGenes:         run.GraphGenes,
		GraphEdges:         run.GraphEdges,
		InitialMeanDensity: run.InitialMeanDensity,
		FinalMeanDensity:   run.FinalMeanDensity,
		DensityHistory:     append([]float64(nil), result.DensityHistory...),
		LocusGenes:         result.LocusGenes,
		TopSubnetworks:     result.TopSubnetworks,
		PValue:             run.PValue,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Status:           e.Status,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			LociCount:        e.LociCount,
			Generations:      e.Generations,
			FinalMeanDensity: e.FinalMeanDensity,
			PValue:           e.PValue,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	runID, err := c.resolveRunID(RunQuery{RunID: req.RunID, Latest: req.Latest})
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// DensityHistory returns the population density per generation, starting with
// the initial population.
func (c *Client) DensityHistory(ctx context.Context, req RunQuery) ([]float64, error) {
	runID, err := c.prepareQuery(ctx, req)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetDensityHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadDensitySeries(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("density history not found for run id: %s", runID)
	}
	return limit(history, req.Limit), nil
}

func (c *Client) Diagnostics(ctx context.Context, req RunQuery) ([]model.GenerationDiagnostics, error) {
	runID, err := c.prepareQuery(ctx, req)
	if err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadGenerationDiagnostics(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	return limit(diagnostics, req.Limit), nil
}

func (c *Client) TopSubnetworks(ctx context.Context, req RunQuery) ([]model.RankedSubnetworkRecord, error) {
	runID, err := c.prepareQuery(ctx, req)
	if err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopSubnetworks(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		top, ok, err = stats.ReadTopSubnetworks(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("top subnetworks not found for run id: %s", runID)
	}
	return limit(top, req.Limit), nil
}

// GeneScores returns gene scores best first. A positive perLocus keeps only
// that many of the best genes of every locus.
func (c *Client) GeneScores(ctx context.Context, req RunQuery, perLocus int) ([]model.GeneScoreRecord, error) {
	runID, err := c.prepareQuery(ctx, req)
	if err != nil {
		return nil, err
	}
	scores, ok, err := c.store.GetGeneScores(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		scores, ok, err = stats.ReadGeneScores(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("gene scores not found for run id: %s", runID)
	}
	if perLocus > 0 {
		taken := map[string]int{}
		kept := make([]model.GeneScoreRecord, 0, len(scores))
		for _, s := range scores {
			if taken[s.Locus] >= perLocus {
				continue
			}
			taken[s.Locus]++
			kept = append(kept, s)
		}
		scores = kept
	}
	return limit(scores, req.Limit), nil
}

func (c *Client) Significance(ctx context.Context, req RunQuery) (model.SignificanceRecord, error) {
	runID, err := c.prepareQuery(ctx, req)
	if err != nil {
		return model.SignificanceRecord{}, err
	}
	record, ok, err := c.store.GetSignificance(ctx, runID)
	if err != nil {
		return model.SignificanceRecord{}, err
	}
	if !ok {
		record, ok, err = stats.ReadSignificance(c.artifactsDir, runID)
		if err != nil {
			return model.SignificanceRecord{}, err
		}
	}
	if !ok {
		return model.SignificanceRecord{}, fmt.Errorf("significance not found for run id: %s", runID)
	}
	return record, nil
}

func (c *Client) prepareQuery(ctx context.Context, req RunQuery) (string, error) {
	if req.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req)
	if err != nil {
		return "", err
	}
	if err := c.runner.Init(ctx); err != nil {
		return "", err
	}
	return runID, nil
}

func (c *Client) resolveRunID(req RunQuery) (string, error) {
	if req.RunID != "" && req.Latest {
		return "", errors.New("use either run id or latest")
	}
	if req.RunID != "" {
		return req.RunID, nil
	}
	if !req.Latest {
		return "", errors.New("query requires run id or latest")
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return append([]T(nil), items...)
}

func effectiveMutationRate(rate *int) int {
	if rate == nil {
		return evo.DefaultMutationRate
	}
	return *rate
}
