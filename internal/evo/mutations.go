package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"locinet/internal/locus"
)

const DefaultMutationRate = 5

var ErrLocusMismatch = errors.New("subnetwork does not match locus layout")

// LocusMutation swaps each chosen gene, with probability Rate percent, for a
// different gene of the same locus. Single-gene loci never change but still
// consume their draw.
type LocusMutation struct {
	Loci locus.Set
	Rate int
}

func (LocusMutation) Name() string {
	return "locus_mutation"
}

func (o LocusMutation) Apply(rng *rand.Rand, nodes []string) ([]string, int, error) {
	if rng == nil {
		return nil, 0, fmt.Errorf("random source is required")
	}
	if len(nodes) != o.Loci.Len() {
		return nil, 0, fmt.Errorf("%w: nodes=%d loci=%d", ErrLocusMismatch, len(nodes), o.Loci.Len())
	}
	out := append([]string(nil), nodes...)
	changed := 0
	for i, current := range out {
		if rng.Intn(100) >= o.Rate {
			continue
		}
		genes := o.Loci.At(i).Genes
		if len(genes) < 2 {
			continue
		}
		next := current
		for next == current {
			next = genes[rng.Intn(len(genes))]
		}
		out[i] = next
		changed++
	}
	return out, changed, nil
}

// LocusCrossover takes, per locus, the partner's gene on a fair coin flip.
type LocusCrossover struct{}

func (LocusCrossover) Name() string {
	return "locus_crossover"
}

func (LocusCrossover) Cross(rng *rand.Rand, self, partner []string) ([]string, int, error) {
	if rng == nil {
		return nil, 0, fmt.Errorf("random source is required")
	}
	if len(self) != len(partner) {
		return nil, 0, fmt.Errorf("%w: self=%d partner=%d", ErrLocusMismatch, len(self), len(partner))
	}
	out := append([]string(nil), self...)
	taken := 0
	for i := range out {
		if rng.Intn(2) == 0 {
			continue
		}
		if out[i] != partner[i] {
			taken++
		}
		out[i] = partner[i]
	}
	return out, taken, nil
}
