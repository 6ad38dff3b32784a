package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord summarizes one analysis run.
type RunRecord struct {
	VersionedRecord
	ID                 string   `json:"id"`
	Status             string   `json:"status"`
	Seed               int64    `json:"seed"`
	PopulationSize     int      `json:"population_size"`
	LociCount          int      `json:"loci_count"`
	GeneCount          int      `json:"gene_count"`
	GraphGenes         int      `json:"graph_genes"`
	GraphEdges         int      `json:"graph_edges"`
	Generations        int      `json:"generations"`
	InitialMeanDensity float64  `json:"initial_mean_density"`
	FinalMeanDensity   float64  `json:"final_mean_density"`
	PValue             *float64 `json:"p_value,omitempty"`
	CreatedAtUTC       string   `json:"created_at_utc"`
}

type SubnetworkRecord struct {
	Nodes     []string `json:"nodes"`
	Density   float64  `json:"density"`
	EdgeCount int      `json:"edge_count"`
}

// PopulationSnapshot is a population as it stood after a given generation.
type PopulationSnapshot struct {
	VersionedRecord
	RunID       string             `json:"run_id"`
	Generation  int                `json:"generation"`
	Subnetworks []SubnetworkRecord `json:"subnetworks"`
}

type GenerationDiagnostics struct {
	Generation          int     `json:"generation"`
	PopulationDensity   float64 `json:"population_density"`
	MeanDensity         float64 `json:"mean_density"`
	BestDensity         float64 `json:"best_density"`
	MinDensity          float64 `json:"min_density"`
	RelativeChange      float64 `json:"relative_change"`
	Mutations           int     `json:"mutations"`
	Crossovers          int     `json:"crossovers"`
	SelectionPoolSize   int     `json:"selection_pool_size"`
	DistinctSubnetworks int     `json:"distinct_subnetworks"`
}

// EdgeRecord is one gene pair of a ranked subnetwork. Weight is nil when the
// pair is not connected.
type EdgeRecord struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Weight *float64 `json:"weight"`
}

type RankedSubnetworkRecord struct {
	Rank      int          `json:"rank"`
	Density   float64      `json:"density"`
	Count     int          `json:"count"`
	Frequency float64      `json:"frequency"`
	Nodes     []string     `json:"nodes"`
	Pairs     []EdgeRecord `json:"pairs"`
}

type GeneScoreRecord struct {
	Gene    string  `json:"gene"`
	Locus   string  `json:"locus"`
	Score   float64 `json:"score"`
	Samples int     `json:"samples"`
}

type HistogramBucket struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// SignificanceRecord holds the empirical p-value and the null distribution it
// was computed from.
type SignificanceRecord struct {
	VersionedRecord
	RunID            string            `json:"run_id"`
	BinMode          string            `json:"bin_mode"`
	Bins             int               `json:"bins"`
	Trials           int               `json:"trials"`
	ReferenceDensity float64           `json:"reference_density"`
	PValue           float64           `json:"p_value"`
	Below            int               `json:"below"`
	AtLeast          int               `json:"at_least"`
	NullMean         float64           `json:"null_mean"`
	NullStdDev       float64           `json:"null_std_dev"`
	NullMin          float64           `json:"null_min"`
	NullMax          float64           `json:"null_max"`
	Distribution     []float64         `json:"distribution"`
	Histogram        []HistogramBucket `json:"histogram,omitempty"`
}
