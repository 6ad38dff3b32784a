package subnet

import (
	"fmt"
	"math/rand"

	"locinet/internal/network"
)

// SampleNull builds a degree-matched random counterpart of reference. Each
// reference node is matched from the first non-empty bin whose MaxDegree is at
// least the node's degree in g. Genes are drawn without replacement within the
// subnetwork; when a bin has nothing left the next qualifying bin is used.
func SampleNull(rng *rand.Rand, g *network.Graph, bins []DegreeBin, reference Subnetwork) (Subnetwork, error) {
	used := make(map[string]struct{}, reference.Len())
	nodes := make([]string, 0, reference.Len())
	for _, ref := range reference.nodes {
		degree := g.Degree(ref)
		gene, ok := drawMatch(rng, g, bins, degree, used)
		if !ok {
			return Subnetwork{}, &BinExhaustedError{Gene: ref, Degree: degree}
		}
		used[gene] = struct{}{}
		nodes = append(nodes, gene)
	}
	return induce(g, nodes), nil
}

func drawMatch(rng *rand.Rand, g *network.Graph, bins []DegreeBin, degree int, used map[string]struct{}) (string, bool) {
	for _, bin := range bins {
		if len(bin.Genes) == 0 || bin.MaxDegree < degree {
			continue
		}
		free := 0
		for _, gene := range bin.Genes {
			if _, taken := used[gene]; !taken {
				free++
			}
		}
		if free == 0 {
			continue
		}
		pick := rng.Intn(free)
		for _, gene := range bin.Genes {
			if _, taken := used[gene]; taken {
				continue
			}
			if pick == 0 {
				return gene, true
			}
			pick--
		}
	}
	return "", false
}

// SampleNullPopulation matches every subnetwork of reference in order.
func SampleNullPopulation(rng *rand.Rand, g *network.Graph, bins []DegreeBin, reference Population) (Population, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	out := make(Population, len(reference))
	for i, ref := range reference {
		s, err := SampleNull(rng, g, bins, ref)
		if err != nil {
			return nil, fmt.Errorf("null subnetwork %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}
