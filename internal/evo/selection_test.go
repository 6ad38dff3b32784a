package evo

import (
	"math"
	"math/rand"
	"testing"
)

func TestFitnessProportionalPool(t *testing.T) {
	pool, err := FitnessProportionalSelector{Scale: 10}.Pool([]float64{0, 0.25, 1.0})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	want := []int{1, 4, 15}
	if len(pool) != len(want) {
		t.Fatalf("expected one cumulative weight per subnetwork, got %v", pool)
	}
	for i := range want {
		if pool[i] != want[i] {
			t.Fatalf("cumulative weights=%v want %v", pool, want)
		}
	}
}

func TestFitnessProportionalPoolDefaultsScale(t *testing.T) {
	pool, err := FitnessProportionalSelector{}.Pool([]float64{0.5})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if len(pool) != 1 || pool[0] != 6 {
		t.Fatalf("expected weight 6 with default scale, got %v", pool)
	}
}

func TestFitnessProportionalPoolStaysLinearForHeavyWeights(t *testing.T) {
	densities := make([]float64, 5000)
	for i := range densities {
		densities[i] = 2400
	}
	pool, err := FitnessProportionalSelector{Scale: 10}.Pool(densities)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if len(pool) != len(densities) {
		t.Fatalf("pool grew with weight: %d entries", len(pool))
	}
	if pool[len(pool)-1] != 5000*24001 {
		t.Fatalf("unexpected total weight: %d", pool[len(pool)-1])
	}
}

// expandedPartners draws partners from a pool that lists every index once per
// unit of weight.
func expandedPartners(densities []float64, scale float64, seed int64, draws int) []int {
	var expanded []int
	for i, d := range densities {
		for j := 0; j < int(math.Floor(d*scale))+1; j++ {
			expanded = append(expanded, i)
		}
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([]int, draws)
	for i := range out {
		out[i] = expanded[rng.Intn(len(expanded))]
	}
	return out
}

func TestFitnessProportionalPartnersMatchExpandedPool(t *testing.T) {
	densities := []float64{0, 0.25, 1.0, 0.05, 3.7, 0, 0.99, 12.5}
	sel := FitnessProportionalSelector{Scale: 10}
	pool, err := sel.Pool(densities)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}

	want := expandedPartners(densities, 10, 42, 2000)
	rng := rand.New(rand.NewSource(42))
	for i, expected := range want {
		got, err := sel.PickPartner(rng, pool)
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
		if got != expected {
			t.Fatalf("draw %d: partner=%d want %d", i, got, expected)
		}
	}
}

func TestFitnessProportionalPoolValidation(t *testing.T) {
	if _, err := (FitnessProportionalSelector{}).Pool(nil); err == nil {
		t.Fatal("expected empty population error")
	}
	if _, err := (FitnessProportionalSelector{}).Pool([]float64{-1}); err == nil {
		t.Fatal("expected negative density error")
	}
	if _, err := (FitnessProportionalSelector{}).PickPartner(nil, []int{0}); err == nil {
		t.Fatal("expected missing rng error")
	}
	if _, err := (FitnessProportionalSelector{}).PickPartner(rand.New(rand.NewSource(1)), nil); err == nil {
		t.Fatal("expected empty pool error")
	}
}

func TestFitnessProportionalFavoursDenseSubnetworks(t *testing.T) {
	sel := FitnessProportionalSelector{Scale: 10}
	pool, err := sel.Pool([]float64{0, 2})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	dense := 0
	for i := 0; i < 1000; i++ {
		idx, err := sel.PickPartner(rng, pool)
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		if idx == 1 {
			dense++
		}
	}
	if dense < 900 {
		t.Fatalf("expected dense subnetwork to dominate, got %d/1000", dense)
	}
}

func TestTournamentSelectorRanksAndPicksBest(t *testing.T) {
	sel := TournamentSelector{TournamentSize: 50}
	pool, err := sel.Pool([]float64{0.1, 0.9, 0.5})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool[0] != 1 || pool[1] != 2 || pool[2] != 0 {
		t.Fatalf("unexpected ranking: %v", pool)
	}
	rng := rand.New(rand.NewSource(1))
	idx, err := sel.PickPartner(rng, pool)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected densest index with a large tournament, got %d", idx)
	}
}

func TestConverged(t *testing.T) {
	tests := []struct {
		name      string
		previous  float64
		current   float64
		converged bool
		change    float64
	}{
		{name: "zero stays zero", previous: 0, current: 0, converged: true, change: 0},
		{name: "rise from zero", previous: 0, current: 2, converged: false, change: 1},
		{name: "small change", previous: 100, current: 100.4, converged: true, change: 0.004},
		{name: "large change", previous: 100, current: 110, converged: false, change: 0.1},
		{name: "decline", previous: 100, current: 99.6, converged: true, change: 0.004},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			converged, change := Converged(tc.previous, tc.current, DefaultConvergenceThreshold)
			if converged != tc.converged {
				t.Fatalf("converged=%t want %t", converged, tc.converged)
			}
			if diff := change - tc.change; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("change=%v want %v", change, tc.change)
			}
		})
	}
}
