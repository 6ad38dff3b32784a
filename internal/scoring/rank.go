package scoring

import (
	"sort"

	"locinet/internal/locus"
	"locinet/internal/network"
	"locinet/internal/subnet"
)

// GenePair is one row of a ranked subnetwork's pairwise table. Weight is nil
// when the genes are not connected.
type GenePair struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Weight *float64 `json:"weight"`
}

// RankedSubnetwork is one distinct subnetwork of a population. Count is how
// many population members share its gene choice and Frequency their share of
// the population.
type RankedSubnetwork struct {
	Rank       int               `json:"rank"`
	Subnetwork subnet.Subnetwork `json:"-"`
	Density    float64           `json:"density"`
	Count      int               `json:"count"`
	Frequency  float64           `json:"frequency"`
	Pairs      []GenePair        `json:"pairs"`
}

// RankSubnetworks collapses identical subnetworks and returns the k densest,
// breaking ties by count and then by gene order. k <= 0 returns all of them.
func RankSubnetworks(population subnet.Population, k int) []RankedSubnetwork {
	index := make(map[string]int, len(population))
	ranked := make([]RankedSubnetwork, 0, len(population))
	keys := make([]string, 0, len(population))
	for _, s := range population {
		key := s.Key()
		if i, ok := index[key]; ok {
			ranked[i].Count++
			continue
		}
		index[key] = len(ranked)
		keys = append(keys, key)
		ranked = append(ranked, RankedSubnetwork{
			Subnetwork: s,
			Density:    subnet.EdgeDensity(s),
			Count:      1,
		})
	}

	order := make([]int, len(ranked))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := ranked[order[a]], ranked[order[b]]
		if ra.Density != rb.Density {
			return ra.Density > rb.Density
		}
		if ra.Count != rb.Count {
			return ra.Count > rb.Count
		}
		return keys[order[a]] < keys[order[b]]
	})

	if k <= 0 || k > len(order) {
		k = len(order)
	}
	out := make([]RankedSubnetwork, 0, k)
	for rank, i := range order[:k] {
		r := ranked[i]
		r.Rank = rank + 1
		r.Frequency = float64(r.Count) / float64(len(population))
		r.Pairs = pairs(r.Subnetwork)
		out = append(out, r)
	}
	return out
}

func pairs(s subnet.Subnetwork) []GenePair {
	out := make([]GenePair, 0, s.Len()*(s.Len()-1)/2)
	for i := 0; i < s.Len(); i++ {
		for j := i + 1; j < s.Len(); j++ {
			p := GenePair{From: s.Node(i), To: s.Node(j)}
			if w, ok := s.Weight(p.From, p.To); ok {
				p.Weight = &w
			}
			out = append(out, p)
		}
	}
	return out
}

// CrossLocusNetwork returns the graph edges among genes that join two
// different loci. Genes outside every locus are ignored. Edges are ordered by
// endpoint names with From < To.
func CrossLocusNetwork(genes []string, g *network.Graph, loci locus.Set) []subnet.Edge {
	seen := make(map[string]struct{}, len(genes))
	kept := make([]string, 0, len(genes))
	for _, gene := range genes {
		if _, dup := seen[gene]; dup {
			continue
		}
		if _, ok := loci.IndexOf(gene); !ok {
			continue
		}
		seen[gene] = struct{}{}
		kept = append(kept, gene)
	}
	sort.Strings(kept)

	var out []subnet.Edge
	for i, u := range kept {
		lu, _ := loci.IndexOf(u)
		for _, v := range kept[i+1:] {
			lv, _ := loci.IndexOf(v)
			if lu == lv {
				continue
			}
			if w, ok := g.Weight(u, v); ok {
				out = append(out, subnet.Edge{From: u, To: v, Weight: w})
			}
		}
	}
	return out
}
