package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locinet/internal/locus"
	"locinet/internal/network"
	"locinet/internal/subnet"
)

func fixture(t *testing.T) (*network.Graph, locus.Set) {
	t.Helper()
	b := network.NewBuilder()
	require.NoError(t, b.AddEdge("a", "x", 1.0))
	require.NoError(t, b.AddEdge("b", "y", 2.0))
	require.NoError(t, b.AddEdge("c", "z", 0.5))
	require.NoError(t, b.AddEdge("a", "y", 0.25))
	require.NoError(t, b.AddEdge("a", "b", 4.0))
	loci, err := locus.NewSet([]locus.Locus{
		{Name: "L1", Genes: []string{"a", "b", "c"}},
		{Name: "L2", Genes: []string{"x", "y", "z"}},
	})
	require.NoError(t, err)
	return b.Build(), loci
}

func induce(t *testing.T, g *network.Graph, genes ...string) subnet.Subnetwork {
	t.Helper()
	s, err := subnet.Induce(g, genes)
	require.NoError(t, err)
	return s
}

func TestGeneScoresAverageBestCrossLocusWeight(t *testing.T) {
	g, loci := fixture(t)
	pop := subnet.Population{
		induce(t, g, "a", "y"),
		induce(t, g, "b", "y"),
	}

	scores := GeneScores(pop, loci, g)
	require.Len(t, scores, loci.GeneCount())
	byGene := map[string]GeneScore{}
	for _, s := range scores {
		byGene[s.Gene] = s
		assert.Equal(t, 2, s.Samples)
	}

	// "a" against chosen y twice: 0.25 each. Its intra-locus edge to b is ignored.
	assert.InDelta(t, 0.25, byGene["a"].Score, 1e-12)
	assert.InDelta(t, 2.0, byGene["b"].Score, 1e-12)
	assert.InDelta(t, 0.0, byGene["c"].Score, 1e-12)
	// "x" against chosen a then b.
	assert.InDelta(t, 0.5, byGene["x"].Score, 1e-12)
	assert.InDelta(t, (0.25+2.0)/2, byGene["y"].Score, 1e-12)
	assert.Equal(t, "L2", byGene["y"].Locus)

	assert.Equal(t, "b", scores[0].Gene)
	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i-1].Score, scores[i].Score)
	}
}

func TestGeneScoresEmptyPopulation(t *testing.T) {
	g, loci := fixture(t)
	scores := GeneScores(nil, loci, g)
	require.Len(t, scores, loci.GeneCount())
	for _, s := range scores {
		assert.Zero(t, s.Score)
		assert.Zero(t, s.Samples)
	}
}

func TestTopLocusGenesClampsToLocusSize(t *testing.T) {
	g, loci := fixture(t)
	scores := GeneScores(subnet.Population{induce(t, g, "b", "y")}, loci, g)

	top := TopLocusGenes(scores, loci, 10)
	require.Len(t, top, 2)
	assert.Len(t, top[0], 3)
	assert.Len(t, top[1], 3)
	assert.Equal(t, "b", top[0][0].Gene)
	assert.Equal(t, "y", top[1][0].Gene)

	one := TopLocusGenes(scores, loci, 1)
	assert.Len(t, one[0], 1)
	assert.Empty(t, TopLocusGenes(scores, loci, -1)[0])
}

func TestRankSubnetworksCollapsesDuplicates(t *testing.T) {
	g, _ := fixture(t)
	pop := subnet.Population{
		induce(t, g, "a", "x"),
		induce(t, g, "b", "y"),
		induce(t, g, "a", "x"),
		induce(t, g, "c", "x"),
	}
	ranked := RankSubnetworks(pop, 0)
	require.Len(t, ranked, 3)

	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, []string{"b", "y"}, ranked[0].Subnetwork.Nodes())
	assert.InDelta(t, 2.0, ranked[0].Density, 1e-12)

	assert.Equal(t, []string{"a", "x"}, ranked[1].Subnetwork.Nodes())
	assert.Equal(t, 2, ranked[1].Count)
	assert.InDelta(t, 0.5, ranked[1].Frequency, 1e-12)
	require.Len(t, ranked[1].Pairs, 1)
	require.NotNil(t, ranked[1].Pairs[0].Weight)
	assert.Equal(t, 1.0, *ranked[1].Pairs[0].Weight)

	assert.Nil(t, ranked[2].Pairs[0].Weight)
	assert.Len(t, RankSubnetworks(pop, 1), 1)
}

func TestCrossLocusNetwork(t *testing.T) {
	g, loci := fixture(t)
	edges := CrossLocusNetwork([]string{"a", "b", "y", "x", "unknown", "a"}, g, loci)
	assert.Equal(t, []subnet.Edge{
		{From: "a", To: "x", Weight: 1.0},
		{From: "a", To: "y", Weight: 0.25},
		{From: "b", To: "y", Weight: 2.0},
	}, edges)
}
