package stats

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"locinet/internal/network"
	"locinet/internal/subnet"
)

const DefaultNullTrials = 1000

type NullConfig struct {
	Graph     *network.Graph
	Bins      []subnet.DegreeBin
	Reference subnet.Population
	Trials    int
	Seed      int64
	Workers   int
}

// NullDistribution samples Trials degree-matched null populations of the
// reference and returns each one's mean subnetwork density, indexed by trial.
// Trial seeds are drawn in order from a master source seeded with Seed, so the
// result does not depend on Workers.
func NullDistribution(ctx context.Context, cfg NullConfig) ([]float64, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("interaction graph is required")
	}
	if len(cfg.Bins) == 0 {
		return nil, fmt.Errorf("degree bins are required")
	}
	if len(cfg.Reference) == 0 {
		return nil, &subnet.DegenerateDensityError{What: "reference population"}
	}
	if cfg.Trials <= 0 {
		return nil, fmt.Errorf("null trials must be > 0")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	master := rand.New(rand.NewSource(cfg.Seed))
	seeds := make([]int64, cfg.Trials)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	out := make([]float64, cfg.Trials)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range seeds {
		trial := i
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[trial]))
			pop, err := subnet.SampleNullPopulation(rng, cfg.Graph, cfg.Bins, cfg.Reference)
			if err != nil {
				return fmt.Errorf("null trial %d: %w", trial, err)
			}
			out[trial] = subnet.PopulationDensity(pop) / float64(len(pop))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type Significance struct {
	ReferenceDensity float64 `json:"reference_density"`
	Trials           int     `json:"trials"`
	Below            int     `json:"below"`
	AtLeast          int     `json:"at_least"`
	PValue           float64 `json:"p_value"`
	NullMean         float64 `json:"null_mean"`
	NullStdDev       float64 `json:"null_std_dev"`
	NullMin          float64 `json:"null_min"`
	NullMax          float64 `json:"null_max"`
}

// EmpiricalPValue is the fraction of null samples at least as dense as the
// reference population's mean density. Ties count against significance, so a
// reference equal to the null minimum scores 1.
func EmpiricalPValue(reference subnet.Population, null []float64) (Significance, error) {
	if len(null) == 0 {
		return Significance{}, &subnet.DegenerateDensityError{What: "null distribution"}
	}
	mean, err := subnet.MeanDensity(reference)
	if err != nil {
		return Significance{}, err
	}
	sorted := append([]float64(nil), null...)
	sort.Float64s(sorted)
	below := sort.SearchFloat64s(sorted, mean)
	atLeast := len(sorted) - below

	p := float64(atLeast) / float64(len(sorted))
	p = math.Max(0, math.Min(1, p))

	nullMean, nullStd := meanStdDev(sorted)
	return Significance{
		ReferenceDensity: mean,
		Trials:           len(sorted),
		Below:            below,
		AtLeast:          atLeast,
		PValue:           p,
		NullMean:         nullMean,
		NullStdDev:       nullStd,
		NullMin:          sorted[0],
		NullMax:          sorted[len(sorted)-1],
	}, nil
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	mean := total / float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

type HistogramBucket struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram bins values into equal-width buckets between their min and max.
// The last bucket is closed on the right.
func Histogram(values []float64, buckets int) []HistogramBucket {
	if len(values) == 0 || buckets <= 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return []HistogramBucket{{Lower: lo, Upper: hi, Count: len(values)}}
	}
	width := (hi - lo) / float64(buckets)
	out := make([]HistogramBucket, buckets)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[buckets-1].Upper = hi
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= buckets {
			idx = buckets - 1
		}
		out[idx].Count++
	}
	return out
}
