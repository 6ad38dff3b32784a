// Package scoring turns an evolved population into per-gene scores and a
// ranked list of distinct subnetworks.
package scoring

import (
	"sort"

	"locinet/internal/locus"
	"locinet/internal/network"
	"locinet/internal/subnet"
)

// GeneScore is a gene's mean best connection to the genes chosen for the other
// loci, averaged over Samples subnetworks.
type GeneScore struct {
	Gene    string  `json:"gene"`
	Locus   string  `json:"locus"`
	Score   float64 `json:"score"`
	Samples int     `json:"samples"`
}

// GeneScores scores every candidate gene of every locus against each
// subnetwork in the population. Within one subnetwork a gene of locus i scores
// the heaviest edge joining it to the gene chosen at any other position, or 0.
// Subnetworks that do not cover loci position by position are skipped.
func GeneScores(population subnet.Population, loci locus.Set, g *network.Graph) []GeneScore {
	type tally struct {
		locus string
		total float64
	}
	sums := make(map[string]*tally, loci.GeneCount())
	for i := 0; i < loci.Len(); i++ {
		l := loci.At(i)
		for _, gene := range l.Genes {
			sums[gene] = &tally{locus: l.Name}
		}
	}

	samples := 0
	for _, s := range population {
		if s.Len() != loci.Len() {
			continue
		}
		samples++
		for i := 0; i < loci.Len(); i++ {
			for _, gene := range loci.At(i).Genes {
				best := 0.0
				for j := 0; j < s.Len(); j++ {
					if j == i {
						continue
					}
					if w, ok := g.Weight(gene, s.Node(j)); ok && w > best {
						best = w
					}
				}
				sums[gene].total += best
			}
		}
	}

	out := make([]GeneScore, 0, len(sums))
	for gene, t := range sums {
		score := 0.0
		if samples > 0 {
			score = t.total / float64(samples)
		}
		out = append(out, GeneScore{Gene: gene, Locus: t.locus, Score: score, Samples: samples})
	}
	sortScores(out)
	return out
}

// TopLocusGenes returns up to n of the best scoring genes of every locus, in
// locus order.
func TopLocusGenes(scores []GeneScore, loci locus.Set, n int) [][]GeneScore {
	byLocus := make(map[string][]GeneScore, loci.Len())
	for _, s := range scores {
		byLocus[s.Locus] = append(byLocus[s.Locus], s)
	}
	out := make([][]GeneScore, loci.Len())
	for i := range out {
		group := byLocus[loci.At(i).Name]
		sortScores(group)
		limit := n
		if limit < 0 {
			limit = 0
		}
		if limit > len(group) {
			limit = len(group)
		}
		out[i] = append([]GeneScore(nil), group[:limit]...)
	}
	return out
}

func sortScores(scores []GeneScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Gene < scores[j].Gene
	})
}
