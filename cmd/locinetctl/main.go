package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"locinet/internal/evo"
	"locinet/internal/logging"
	"locinet/internal/platform"
	"locinet/internal/stats"
	"locinet/internal/storage"
	"locinet/pkg/locinet"
)

const (
	runsDir    = "runs"
	exportsDir = "exports"

	dbPathEnv    = "LOCINET_DB_PATH"
	logLevelEnv  = "LOCINET_LOG_LEVEL"
	logFormatEnv = "LOCINET_LOG_FORMAT"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, fmt.Errorf("load .env: %w", err))
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "density":
		return runDensity(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "genes":
		return runGenes(ctx, args[1:])
	case "pvalue":
		return runPValue(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOr(dbPathEnv, "locinet.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := openClient(*storeKind, *dbPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOr(dbPathEnv, "locinet.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := openClient(*storeKind, *dbPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}
	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config path (.json, .yaml or .yml)")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	lociPath := fs.String("loci", "", "GMT file with one locus per line")
	interactionsPath := fs.String("interactions", "", "tab separated gene1/gene2/weight interaction table")
	population := fs.Int("pop", platform.DefaultPopulationSize, "population size")
	generations := fs.Int("gens", evo.DefaultMaxGenerations, "maximum generation count")
	threshold := fs.Float64("threshold", evo.DefaultConvergenceThreshold, "relative density change below which the population has converged")
	mutationRate := fs.Int("mutation-rate", evo.DefaultMutationRate, "per-locus mutation probability in percent, 0 disables mutation")
	selection := fs.String("selection", evo.FitnessProportionalSelector{}.Name(), "partner selection strategy: "+strings.Join(evo.ListSelectors(), "|"))
	selectionScale := fs.Float64("selection-scale", evo.DefaultSelectionScale, "copies per unit of relative density in the fitness proportional pool")
	tournamentSize := fs.Int("tournament-size", 3, "draws per tournament for --selection=tournament")
	binMode := fs.String("bin-mode", "quantile", "degree binning for null sampling: quantile|fixed")
	bins := fs.Int("bins", platform.DefaultBins, "degree bin count for null sampling")
	nullTrials := fs.Int("null-trials", stats.DefaultNullTrials, "null populations sampled for the empirical p-value")
	skipSignificance := fs.Bool("skip-significance", false, "skip null sampling and the p-value")
	top := fs.Int("top", platform.DefaultTopSubnetworks, "ranked subnetworks to keep")
	genesPerLocus := fs.Int("genes-per-locus", platform.DefaultGenesPerLocus, "best scoring genes reported per locus")
	seed := fs.Int64("seed", 1, "rng seed")
	workers := fs.Int("workers", 4, "worker count")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOr(dbPathEnv, "locinet.db"), "sqlite database path")
	logLevel := fs.String("log-level", envOr(logLevelEnv, "info"), "log level: debug|info|warn|error")
	logFormat := fs.String("log-format", envOr(logFormatEnv, logging.FormatAuto), "log format: auto|text|logfmt|json")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = locinet.RunRequest{
			RunID:                *runID,
			LociPath:             *lociPath,
			InteractionsPath:     *interactionsPath,
			Population:           *population,
			MaxGenerations:       *generations,
			ConvergenceThreshold: *threshold,
			MutationRate:         mutationRate,
			Selection:            *selection,
			SelectionScale:       *selectionScale,
			TournamentSize:       *tournamentSize,
			BinMode:              *binMode,
			Bins:                 *bins,
			NullTrials:           *nullTrials,
			SkipSignificance:     *skipSignificance,
			TopSubnetworks:       *top,
			GenesPerLocus:        *genesPerLocus,
			Workers:              *workers,
			Seed:                 *seed,
		}
	} else {
		overrideFromFlags(&req, setFlags, map[string]any{
			"run-id":            *runID,
			"loci":              *lociPath,
			"interactions":      *interactionsPath,
			"pop":               *population,
			"gens":              *generations,
			"threshold":         *threshold,
			"mutation-rate":     *mutationRate,
			"selection":         *selection,
			"selection-scale":   *selectionScale,
			"tournament-size":   *tournamentSize,
			"bin-mode":          *binMode,
			"bins":              *bins,
			"null-trials":       *nullTrials,
			"skip-significance": *skipSignificance,
			"top":               *top,
			"genes-per-locus":   *genesPerLocus,
			"workers":           *workers,
			"seed":              *seed,
		})
	}
	if req.LociPath == "" || req.InteractionsPath == "" {
		return errors.New("run requires --loci and --interactions (or a config naming them)")
	}

	logger, err := logging.New(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Prefix: "locinet",
		Writer: os.Stderr,
	})
	if err != nil {
		return err
	}

	client, err := openClient(*storeKind, *dbPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	started := time.Now()
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	logger.Info("run finished", "run_id", summary.RunID, "elapsed", time.Since(started).Round(time.Millisecond))

	if *jsonOut {
		return writeJSON(summary)
	}

	fmt.Printf("run_id=%s status=%s generations=%d loci=%d genes=%s graph_genes=%s graph_edges=%s initial_mean_density=%.6f final_mean_density=%.6f p_value=%s artifacts=%s\n",
		summary.RunID,
		summary.Status,
		summary.Generations,
		summary.LociCount,
		humanize.Comma(int64(summary.GeneCount)),
		humanize.Comma(int64(summary.GraphGenes)),
		humanize.Comma(int64(summary.GraphEdges)),
		summary.InitialMeanDensity,
		summary.FinalMeanDensity,
		formatPValue(summary.PValue),
		summary.ArtifactsDir,
	)
	for _, genes := range summary.LocusGenes {
		for i, g := range genes {
			fmt.Printf("locus=%s rank=%d gene=%s score=%.6f\n", g.Locus, i+1, g.Gene, g.Score)
		}
	}
	for _, item := range summary.TopSubnetworks {
		fmt.Printf("rank=%d density=%.6f count=%d frequency=%.4f nodes=%s\n",
			item.Rank, item.Density, item.Count, item.Frequency, strings.Join(item.Nodes, ","))
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := openClient("memory", "", nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, locinet.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return writeJSON(items)
	}

	for _, item := range items {
		fmt.Printf("run_id=%s created=%s status=%s seed=%d population=%s loci=%d generations=%d final_mean_density=%.6f p_value=%s\n",
			item.RunID,
			formatCreated(item.CreatedAtUTC),
			item.Status,
			item.Seed,
			humanize.Comma(int64(item.Population)),
			item.LociCount,
			item.Generations,
			item.FinalMeanDensity,
			formatPValue(item.PValue),
		)
	}
	return nil
}

func runDensity(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("density", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show density history for the most recent run from run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit density history as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOr(dbPathEnv, "locinet.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query, err := runQuery("density", *runID, *latest, *limit)
	if err != nil {
		return err
	}

	client, err := openClient(*storeKind, *dbPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.DensityHistory(ctx, query)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no density history")
		return nil
	}
	if *jsonOut {
		return writeJSON(history)
	}

	for i, density := range history {
		fmt.Printf("generation=%d population_density=%.6f\n", i, density)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show diagnostics for the most recent run from run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOr(dbPathEnv, "locinet.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query, err := runQuery("diagnostics", *runID, *latest, *limit)
	if err != nil {
		return err
	}

	client, err := openClient(*storeKind, *dbPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, query)
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *jsonOut {
		return writeJSON(diagnostics)
	}

	for _, d := range diagnostics {
		fmt.Printf("generation=%d population_density=%.6f mean=%.6f best=%.6f min=%.6f change=%.6f mutations=%d crossovers=%d pool=%d distinct=%d\n",
			d.Generation,
			d.PopulationDensity,
			d.MeanDensity,
			d.BestDensity,
			d.MinDensity,
			d.RelativeChange,
			d.Mutations,
			d.Crossovers,
			d.SelectionPoolSize,
			d.DistinctSubnetworks,
		)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show top subnetworks for the most recent run from run index")
	limit := fs.Int("limit", 5, "max subnetworks to print (<=0 for all)")
	showPairs := fs.Bool("pairs", false, "print the gene pairs of every subnetwork")
	jsonOut := fs.Bool("json", false, "emit top subnetworks as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOr(dbPathEnv, "locinet.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query, err := runQuery("top", *runID, *latest, *limit)
	if err != nil {
		return err
	}

	client, err := openClient(*storeKind, *dbPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopSubnetworks(ctx, query)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Println("no top subnetworks")
		return nil
	}
	if *jsonOut {
		return writeJSON(top)
	}

	for _, item := range top {
		fmt.Printf("rank=%d density=%.6f count=%d frequency=%.4f nodes=%s\n",
			item.Rank, item.Density, item.Count, item.Frequency, strings.Join(item.Nodes, ","))
		if !*showPairs {
			continue
		}
		for _, p := range item.Pairs {
			weight := "none"
			if p.Weight != nil {
				weight = fmt.Sprintf("%.6f", *p.Weight)
			}
			fmt.Printf("  from=%s to=%s weight=%s\n", p.From, p.To, weight)
		}
	}
	return nil
}

func runGenes(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("genes", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show gene scores for the most recent run from run index")
	limit := fs.Int("limit", 0, "max genes to print (<=0 for all)")
	perLocus := fs.Int("per-locus", 0, "best genes to keep per locus (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit gene scores as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOr(dbPathEnv, "locinet.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query, err := runQuery("genes", *runID, *latest, *limit)
	if err != nil {
		return err
	}

	client, err := openClient(*storeKind, *dbPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	scores, err := client.GeneScores(ctx, query, *perLocus)
	if err != nil {
		return err
	}
	if len(scores) == 0 {
		fmt.Println("no gene scores")
		return nil
	}
	if *jsonOut {
		return writeJSON(scores)
	}

	for _, s := range scores {
		fmt.Printf("gene=%s locus=%s score=%.6f samples=%d\n", s.Gene, s.Locus, s.Score, s.Samples)
	}
	return nil
}

func runPValue(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pvalue", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show significance for the most recent run from run index")
	showHistogram := fs.Bool("histogram", false, "print the null distribution histogram")
	jsonOut := fs.Bool("json", false, "emit significance as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOr(dbPathEnv, "locinet.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query, err := runQuery("pvalue", *runID, *latest, 0)
	if err != nil {
		return err
	}

	client, err := openClient(*storeKind, *dbPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	record, err := client.Significance(ctx, query)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(record)
	}

	fmt.Printf("run_id=%s p_value=%.6f reference_density=%.6f trials=%s at_least=%d below=%d null_mean=%.6f null_std_dev=%.6f null_min=%.6f null_max=%.6f bin_mode=%s bins=%d\n",
		record.RunID,
		record.PValue,
		record.ReferenceDensity,
		humanize.Comma(int64(record.Trials)),
		record.AtLeast,
		record.Below,
		record.NullMean,
		record.NullStdDev,
		record.NullMin,
		record.NullMax,
		record.BinMode,
		record.Bins,
	)
	if *showHistogram {
		for _, b := range record.Histogram {
			fmt.Printf("  lower=%.6f upper=%.6f count=%d\n", b.Lower, b.Upper, b.Count)
		}
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := openClient("memory", "", nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, locinet.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func openClient(storeKind, dbPath string, logger *log.Logger) (*locinet.Client, error) {
	return locinet.New(locinet.Options{
		StoreKind:    storeKind,
		DBPath:       dbPath,
		ArtifactsDir: runsDir,
		ExportsDir:   exportsDir,
		Logger:       logger,
	})
}

func runQuery(command, runID string, latest bool, limit int) (locinet.RunQuery, error) {
	if runID != "" && latest {
		return locinet.RunQuery{}, errors.New("use either --run-id or --latest, not both")
	}
	if runID == "" && !latest {
		return locinet.RunQuery{}, fmt.Errorf("%s requires --run-id or --latest", command)
	}
	if limit < 0 {
		limit = 0
	}
	return locinet.RunQuery{RunID: runID, Latest: latest, Limit: limit}, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatPValue(p *float64) string {
	if p == nil {
		return "none"
	}
	return fmt.Sprintf("%.6f", *p)
}

func formatCreated(raw string) string {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return raw
	}
	return strings.ReplaceAll(humanize.Time(t), " ", "_")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: locinetctl <init|reset|run|runs|density|diagnostics|top|genes|pvalue|export> [flags]", msg)
}
