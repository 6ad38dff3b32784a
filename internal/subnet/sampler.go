package subnet

import (
	"fmt"
	"math/rand"

	"locinet/internal/locus"
	"locinet/internal/network"
)

// SampleLocus picks one gene uniformly from each locus, in locus order, and
// induces the edges among them.
func SampleLocus(rng *rand.Rand, g *network.Graph, loci locus.Set) Subnetwork {
	nodes := make([]string, loci.Len())
	for i := 0; i < loci.Len(); i++ {
		genes := loci.At(i).Genes
		nodes[i] = genes[rng.Intn(len(genes))]
	}
	return induce(g, nodes)
}

// SampleLocusPopulation draws n independent locus subnetworks.
func SampleLocusPopulation(rng *rand.Rand, n int, g *network.Graph, loci locus.Set) (Population, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if n <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if loci.Len() == 0 {
		return nil, &locus.EmptyLociError{Index: -1}
	}
	pop := make(Population, n)
	for i := range pop {
		pop[i] = SampleLocus(rng, g, loci)
	}
	return pop, nil
}
