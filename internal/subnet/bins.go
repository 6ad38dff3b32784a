package subnet

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"locinet/internal/network"
)

type BinMode string

const (
	BinModeQuantile BinMode = "quantile"
	BinModeFixed    BinMode = "fixed"
)

// ParseBinMode accepts "quantile" or "fixed"; empty defaults to quantile.
func ParseBinMode(raw string) (BinMode, error) {
	switch BinMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", BinModeQuantile:
		return BinModeQuantile, nil
	case BinModeFixed:
		return BinModeFixed, nil
	default:
		return "", fmt.Errorf("unsupported bin mode: %s", raw)
	}
}

// DegreeBin groups genes of similar degree. Genes are in ascending degree
// order. MaxDegree is -1 for an empty bin.
type DegreeBin struct {
	Genes     []string `json:"genes"`
	MinDegree int      `json:"min_degree"`
	MaxDegree int      `json:"max_degree"`
}

// BuildBins dispatches on mode.
func BuildBins(g *network.Graph, mode BinMode, numBins int) ([]DegreeBin, error) {
	switch mode {
	case BinModeQuantile, "":
		return BuildQuantileBins(g, numBins)
	case BinModeFixed:
		return BuildFixedBins(g, numBins)
	default:
		return nil, fmt.Errorf("unsupported bin mode: %s", mode)
	}
}

// BuildFixedBins splits the degree range into numBins equal-width bands of
// maxDegree/numBins, rounded half to even. Bins may be empty.
func BuildFixedBins(g *network.Graph, numBins int) ([]DegreeBin, error) {
	if numBins <= 0 {
		return nil, fmt.Errorf("bin count must be > 0")
	}
	genes := genesByDegree(g)
	width := int(math.RoundToEven(float64(g.MaxDegree()) / float64(numBins)))
	if width < 1 {
		width = 1
	}
	members := make([][]string, numBins)
	for _, gene := range genes {
		idx := g.Degree(gene) / width
		if idx >= numBins {
			idx = numBins - 1
		}
		members[idx] = append(members[idx], gene)
	}
	bins := make([]DegreeBin, numBins)
	for i := range bins {
		bins[i] = newBin(g, members[i])
	}
	return bins, nil
}

// BuildQuantileBins cuts the degree-sorted gene list into numBins contiguous
// chunks of near-equal size. Every gene lands in exactly one bin.
func BuildQuantileBins(g *network.Graph, numBins int) ([]DegreeBin, error) {
	if numBins <= 0 {
		return nil, fmt.Errorf("bin count must be > 0")
	}
	genes := genesByDegree(g)
	n := len(genes)
	bins := make([]DegreeBin, numBins)
	for i := range bins {
		start := i * n / numBins
		end := (i + 1) * n / numBins
		bins[i] = newBin(g, genes[start:end:end])
	}
	return bins, nil
}

func newBin(g *network.Graph, genes []string) DegreeBin {
	if len(genes) == 0 {
		return DegreeBin{MinDegree: -1, MaxDegree: -1}
	}
	return DegreeBin{
		Genes:     genes,
		MinDegree: g.Degree(genes[0]),
		MaxDegree: g.Degree(genes[len(genes)-1]),
	}
}

func genesByDegree(g *network.Graph) []string {
	genes := g.Genes()
	sort.SliceStable(genes, func(i, j int) bool {
		return g.Degree(genes[i]) < g.Degree(genes[j])
	})
	return genes
}
