package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"locinet/internal/model"
)

const runIndexFile = "run_index.json"

const (
	configFile           = "config.json"
	densityHistoryFile   = "density_history.json"
	densitySeriesFile    = "density_series.csv"
	diagnosticsFile      = "generation_diagnostics.json"
	topSubnetworksFile   = "top_subnetworks.json"
	crossLocusFile       = "cross_locus_network.json"
	geneScoresFile       = "gene_scores.json"
	significanceFile     = "significance.json"
	nullDistributionFile = "null_distribution.csv"
)

// RunConfig is the fully resolved configuration a run was started with.
type RunConfig struct {
	RunID                string  `json:"run_id"`
	LociPath             string  `json:"loci_path,omitempty"`
	InteractionsPath     string  `json:"interactions_path,omitempty"`
	PopulationSize       int     `json:"population_size"`
	MaxGenerations       int     `json:"max_generations"`
	ConvergenceThreshold float64 `json:"convergence_threshold"`
	MutationRate         int     `json:"mutation_rate"`
	Selection            string  `json:"selection"`
	SelectionScale       float64 `json:"selection_scale"`
	TournamentSize       int     `json:"tournament_size,omitempty"`
	BinMode              string  `json:"bin_mode"`
	Bins                 int     `json:"bins"`
	NullTrials           int     `json:"null_trials"`
	SkipSignificance     bool    `json:"skip_significance,omitempty"`
	TopSubnetworks       int     `json:"top_subnetworks"`
	GenesPerLocus        int     `json:"genes_per_locus"`
	Seed                 int64   `json:"seed"`
	Workers              int     `json:"workers"`
}

type RunArtifacts struct {
	Config                RunConfig                      `json:"config"`
	Status                string                         `json:"status"`
	DensityHistory        []float64                      `json:"density_history"`
	GenerationDiagnostics []model.GenerationDiagnostics  `json:"generation_diagnostics,omitempty"`
	TopSubnetworks        []model.RankedSubnetworkRecord `json:"top_subnetworks"`
	GeneScores            []model.GeneScoreRecord        `json:"gene_scores"`
	CrossLocusNetwork     []model.EdgeRecord             `json:"cross_locus_network"`
	Significance          *model.SignificanceRecord      `json:"significance,omitempty"`
}

type RunIndexEntry struct {
	RunID            string   `json:"run_id"`
	Status           string   `json:"status"`
	PopulationSize   int      `json:"population_size"`
	LociCount        int      `json:"loci_count"`
	Generations      int      `json:"generations"`
	Seed             int64    `json:"seed"`
	Workers          int      `json:"workers"`
	FinalMeanDensity float64  `json:"final_mean_density"`
	PValue           *float64 `json:"p_value,omitempty"`
	CreatedAtUTC     string   `json:"created_at_utc"`
}

// WriteRunArtifacts lays out one directory per run under baseDir and returns
// its path.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	final := 0.0
	if n := len(artifacts.DensityHistory); n > 0 {
		final = artifacts.DensityHistory[n-1]
	}
	if err := writeJSON(filepath.Join(runDir, densityHistoryFile), map[string]any{
		"status":                   artifacts.Status,
		"density_by_generation":    artifacts.DensityHistory,
		"final_population_density": final,
	}); err != nil {
		return "", err
	}
	if err := WriteDensitySeries(runDir, artifacts.DensityHistory); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, diagnosticsFile), artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, topSubnetworksFile), artifacts.TopSubnetworks); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, geneScoresFile), artifacts.GeneScores); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, crossLocusFile), artifacts.CrossLocusNetwork); err != nil {
		return "", err
	}
	if artifacts.Significance != nil {
		if err := writeJSON(filepath.Join(runDir, significanceFile), artifacts.Significance); err != nil {
			return "", err
		}
		if err := WriteNullDistribution(runDir, artifacts.Significance.Distribution); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first. Entries with equal
// timestamps keep the most recently appended first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory into outDir. Significance files
// are optional since a run may skip the null distribution.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	required := []string{configFile, densityHistoryFile, densitySeriesFile, diagnosticsFile, topSubnetworksFile, geneScoresFile, crossLocusFile}
	for _, file := range required {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{significanceFile, nullDistributionFile} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, file)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	if err != nil || !ok {
		return RunConfig{}, ok, err
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = runID
	}
	if cfg.RunID != runID {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, runID)
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	var diagnostics []model.GenerationDiagnostics
	ok, err := readJSON(filepath.Join(baseDir, runID, diagnosticsFile), &diagnostics)
	return diagnostics, ok, err
}

func ReadTopSubnetworks(baseDir, runID string) ([]model.RankedSubnetworkRecord, bool, error) {
	var top []model.RankedSubnetworkRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, topSubnetworksFile), &top)
	return top, ok, err
}

func ReadGeneScores(baseDir, runID string) ([]model.GeneScoreRecord, bool, error) {
	var scores []model.GeneScoreRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, geneScoresFile), &scores)
	return scores, ok, err
}

func ReadCrossLocusNetwork(baseDir, runID string) ([]model.EdgeRecord, bool, error) {
	var edges []model.EdgeRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, crossLocusFile), &edges)
	return edges, ok, err
}

func ReadSignificance(baseDir, runID string) (model.SignificanceRecord, bool, error) {
	var record model.SignificanceRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, significanceFile), &record)
	return record, ok, err
}

// WriteDensitySeries writes one row per generation, starting at generation 0
// for the initial population.
func WriteDensitySeries(runDir string, history []float64) error {
	rows := make([][]string, 0, len(history))
	for i, density := range history {
		rows = append(rows, []string{strconv.Itoa(i), strconv.FormatFloat(density, 'f', -1, 64)})
	}
	return writeCSV(filepath.Join(runDir, densitySeriesFile), []string{"generation", "population_density"}, rows)
}

func ReadDensitySeries(baseDir, runID string) ([]float64, bool, error) {
	return readSeries(filepath.Join(baseDir, runID, densitySeriesFile))
}

// WriteNullDistribution writes the per-trial null mean densities in trial
// order.
func WriteNullDistribution(runDir string, distribution []float64) error {
	rows := make([][]string, 0, len(distribution))
	for i, density := range distribution {
		rows = append(rows, []string{strconv.Itoa(i), strconv.FormatFloat(density, 'f', -1, 64)})
	}
	return writeCSV(filepath.Join(runDir, nullDistributionFile), []string{"trial", "mean_density"}, rows)
}

func ReadNullDistribution(baseDir, runID string) ([]float64, bool, error) {
	return readSeries(filepath.Join(baseDir, runID, nullDistributionFile))
}

func readSeries(path string) ([]float64, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
