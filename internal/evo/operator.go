package evo

import "math/rand"

// Operator rewrites the gene choices of one locus subnetwork. Position i of
// nodes always holds the gene chosen for locus i, and implementations must
// keep it that way. The returned count is the number of positions changed.
type Operator interface {
	Name() string
	Apply(rng *rand.Rand, nodes []string) ([]string, int, error)
}

// Crossover combines a subnetwork's gene choices with a partner's.
type Crossover interface {
	Name() string
	Cross(rng *rand.Rand, self, partner []string) ([]string, int, error)
}
