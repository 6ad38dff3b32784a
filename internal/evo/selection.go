package evo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const DefaultSelectionScale = 10.0

// Selector turns per-subnetwork densities into a mating pool and draws
// partners from it. The pool layout is private to each selector; callers only
// hand it back to PickPartner.
type Selector interface {
	Name() string
	Pool(densities []float64) ([]int, error)
	PickPartner(rng *rand.Rand, pool []int) (int, error)
}

// FitnessProportionalSelector weights index i by floor(density*Scale)+1, so
// every subnetwork can mate and denser ones mate more often. The pool holds
// cumulative weights, one entry per subnetwork.
type FitnessProportionalSelector struct {
	Scale float64
}

func (FitnessProportionalSelector) Name() string {
	return "fitness_proportional"
}

func (s FitnessProportionalSelector) Pool(densities []float64) ([]int, error) {
	if len(densities) == 0 {
		return nil, fmt.Errorf("selection requires a non-empty population")
	}
	scale := s.Scale
	if scale <= 0 {
		scale = DefaultSelectionScale
	}
	cumulative := make([]int, len(densities))
	total := 0
	for i, d := range densities {
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, fmt.Errorf("invalid density at index %d: %v", i, d)
		}
		copies := d*scale + 1
		if copies >= float64(math.MaxInt-total) {
			return nil, fmt.Errorf("selection weight overflow at index %d: %v", i, d)
		}
		total += int(math.Floor(d*scale)) + 1
		cumulative[i] = total
	}
	return cumulative, nil
}

// PickPartner draws one slot out of the total weight and returns the index
// owning it.
func (FitnessProportionalSelector) PickPartner(rng *rand.Rand, pool []int) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	if len(pool) == 0 {
		return 0, fmt.Errorf("selection pool is empty")
	}
	slot := rng.Intn(pool[len(pool)-1])
	return sort.SearchInts(pool, slot+1), nil
}

// TournamentSelector ranks the population by density and returns the best of
// TournamentSize uniform draws from the ranking.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

// Pool returns indices ordered from densest to sparsest; ties keep index
// order.
func (TournamentSelector) Pool(densities []float64) ([]int, error) {
	if len(densities) == 0 {
		return nil, fmt.Errorf("selection requires a non-empty population")
	}
	ranked := make([]int, len(densities))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return densities[ranked[a]] > densities[ranked[b]]
	})
	return ranked, nil
}

func (s TournamentSelector) PickPartner(rng *rand.Rand, pool []int) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	if len(pool) == 0 {
		return 0, fmt.Errorf("selection pool is empty")
	}
	tournamentSize := s.TournamentSize
	if tournamentSize <= 0 {
		tournamentSize = 3
	}
	best := rng.Intn(len(pool))
	for i := 1; i < tournamentSize; i++ {
		if candidate := rng.Intn(len(pool)); candidate < best {
			best = candidate
		}
	}
	return pool[best], nil
}
