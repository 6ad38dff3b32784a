package evo

import (
	"errors"
	"math/rand"
	"testing"

	"locinet/internal/locus"
)

func mustLoci(t *testing.T, loci ...locus.Locus) locus.Set {
	t.Helper()
	set, err := locus.NewSet(loci)
	if err != nil {
		t.Fatalf("new locus set: %v", err)
	}
	return set
}

func TestLocusMutationStaysInsideLocus(t *testing.T) {
	loci := mustLoci(t,
		locus.Locus{Name: "A", Genes: []string{"A1", "A2", "A3"}},
		locus.Locus{Name: "B", Genes: []string{"B1", "B2"}},
		locus.Locus{Name: "C", Genes: []string{"C1"}},
	)
	op := LocusMutation{Loci: loci, Rate: 100}
	rng := rand.New(rand.NewSource(3))
	nodes := []string{"A1", "B1", "C1"}
	for i := 0; i < 100; i++ {
		out, changed, err := op.Apply(rng, nodes)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if changed != 2 {
			t.Fatalf("expected two mutated loci, got %d", changed)
		}
		if out[0] == "A1" || out[1] != "B2" || out[2] != "C1" {
			t.Fatalf("unexpected mutation result: %v", out)
		}
		if idx, _ := loci.IndexOf(out[0]); idx != 0 {
			t.Fatalf("gene %s left its locus", out[0])
		}
	}
	if nodes[0] != "A1" {
		t.Fatal("input slice was modified")
	}
}

func TestLocusMutationZeroRate(t *testing.T) {
	loci := mustLoci(t, locus.Locus{Name: "A", Genes: []string{"A1", "A2"}})
	out, changed, err := LocusMutation{Loci: loci, Rate: 0}.Apply(rand.New(rand.NewSource(1)), []string{"A2"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if changed != 0 || out[0] != "A2" {
		t.Fatalf("expected no change, got %v (%d)", out, changed)
	}
}

func TestLocusMutationValidation(t *testing.T) {
	loci := mustLoci(t, locus.Locus{Name: "A", Genes: []string{"A1", "A2"}})
	op := LocusMutation{Loci: loci, Rate: 5}
	if _, _, err := op.Apply(nil, []string{"A1"}); err == nil {
		t.Fatal("expected missing rng error")
	}
	if _, _, err := op.Apply(rand.New(rand.NewSource(1)), []string{"A1", "B1"}); !errors.Is(err, ErrLocusMismatch) {
		t.Fatalf("expected ErrLocusMismatch, got %v", err)
	}
}

func TestLocusCrossoverPicksPerLocus(t *testing.T) {
	self := []string{"A1", "B1", "C1", "D1"}
	partner := []string{"A2", "B2", "C2", "D2"}
	rng := rand.New(rand.NewSource(11))
	sawSelf, sawPartner := false, false
	for i := 0; i < 50; i++ {
		out, taken, err := LocusCrossover{}.Cross(rng, self, partner)
		if err != nil {
			t.Fatalf("cross: %v", err)
		}
		count := 0
		for j := range out {
			switch out[j] {
			case self[j]:
				sawSelf = true
			case partner[j]:
				sawPartner = true
				count++
			default:
				t.Fatalf("position %d holds foreign gene %s", j, out[j])
			}
		}
		if count != taken {
			t.Fatalf("taken=%d but %d partner genes present", taken, count)
		}
	}
	if !sawSelf || !sawPartner {
		t.Fatalf("expected both parents to contribute, self=%t partner=%t", sawSelf, sawPartner)
	}
}

func TestLocusCrossoverValidation(t *testing.T) {
	if _, _, err := (LocusCrossover{}).Cross(rand.New(rand.NewSource(1)), []string{"a"}, nil); !errors.Is(err, ErrLocusMismatch) {
		t.Fatalf("expected ErrLocusMismatch, got %v", err)
	}
	if _, _, err := (LocusCrossover{}).Cross(nil, nil, nil); err == nil {
		t.Fatal("expected missing rng error")
	}
}
