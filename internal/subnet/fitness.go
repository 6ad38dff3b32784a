package subnet

// EdgeCount is the number of undirected edges in s.
func EdgeCount(s Subnetwork) int {
	total := 0
	for _, n := range s.nodes {
		total += len(s.adj[n])
	}
	return total / 2
}

// EdgeDensity is the summed weight of every undirected edge in s. Each edge
// is visited from both ends in node order and the total halved.
func EdgeDensity(s Subnetwork) float64 {
	total := 0.0
	for _, u := range s.nodes {
		nbrs := s.adj[u]
		if len(nbrs) == 0 {
			continue
		}
		for _, v := range s.nodes {
			if w, ok := nbrs[v]; ok {
				total += w
			}
		}
	}
	return total / 2
}

// PopulationDensity sums EdgeDensity over the population.
func PopulationDensity(p Population) float64 {
	total := 0.0
	for _, s := range p {
		total += EdgeDensity(s)
	}
	return total
}

// MeanDensity is PopulationDensity divided by the population size.
func MeanDensity(p Population) (float64, error) {
	if len(p) == 0 {
		return 0, &DegenerateDensityError{What: "population"}
	}
	return PopulationDensity(p) / float64(len(p)), nil
}
