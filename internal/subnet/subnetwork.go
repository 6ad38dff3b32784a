// Package subnet samples small subnetworks out of the interaction graph and
// scores them. A Subnetwork's edges are always derived from its node list;
// callers change a subnetwork by inducing a new one from an edited node list.
package subnet

import (
	"errors"
	"fmt"
	"strings"

	"locinet/internal/network"
)

var ErrDuplicateNode = errors.New("subnet: node listed twice")

// BinExhaustedError reports a reference node for which no degree bin can
// supply a gene.
type BinExhaustedError struct {
	Gene   string
	Degree int
}

func (e *BinExhaustedError) Error() string {
	return fmt.Sprintf("subnet: no degree bin can supply a match for %q (degree %d)", e.Gene, e.Degree)
}

// DegenerateDensityError reports an average taken over nothing.
type DegenerateDensityError struct {
	What string
}

func (e *DegenerateDensityError) Error() string {
	return fmt.Sprintf("subnet: cannot average density over empty %s", e.What)
}

type Edge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Weight float64 `json:"weight"`
}

// Subnetwork is an ordered node list plus the edges the graph induces on it.
type Subnetwork struct {
	nodes []string
	adj   map[string]map[string]float64
}

// Population is an ordered collection of subnetworks.
type Population []Subnetwork

// Induce builds the subnetwork of g spanned by genes. Genes unknown to g are
// kept as isolated nodes.
func Induce(g *network.Graph, genes []string) (Subnetwork, error) {
	seen := make(map[string]struct{}, len(genes))
	for _, gene := range genes {
		if _, ok := seen[gene]; ok {
			return Subnetwork{}, fmt.Errorf("%w: %s", ErrDuplicateNode, gene)
		}
		seen[gene] = struct{}{}
	}
	return induce(g, append([]string(nil), genes...)), nil
}

// induce takes ownership of nodes, which must be distinct.
func induce(g *network.Graph, nodes []string) Subnetwork {
	s := Subnetwork{
		nodes: nodes,
		adj:   make(map[string]map[string]float64, len(nodes)),
	}
	for _, n := range nodes {
		s.adj[n] = map[string]float64{}
	}
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			w, ok := g.Weight(nodes[i], nodes[j])
			if !ok {
				continue
			}
			s.adj[nodes[i]][nodes[j]] = w
			s.adj[nodes[j]][nodes[i]] = w
		}
	}
	return s
}

// Rebuild re-derives the edges of s from g. The result equals s whenever g is
// unchanged.
func Rebuild(g *network.Graph, s Subnetwork) Subnetwork {
	return induce(g, s.Nodes())
}

func (s Subnetwork) Len() int { return len(s.nodes) }

// Node returns the gene at position i.
func (s Subnetwork) Node(i int) string { return s.nodes[i] }

// Nodes returns a copy of the node list.
func (s Subnetwork) Nodes() []string { return append([]string(nil), s.nodes...) }

func (s Subnetwork) Contains(gene string) bool {
	_, ok := s.adj[gene]
	return ok
}

// Degree is the number of subnetwork neighbors of gene.
func (s Subnetwork) Degree(gene string) int { return len(s.adj[gene]) }

func (s Subnetwork) Weight(u, v string) (float64, bool) {
	w, ok := s.adj[u][v]
	return w, ok
}

// Key identifies s by its node list; equal keys mean equal subnetworks for a
// fixed graph.
func (s Subnetwork) Key() string { return strings.Join(s.nodes, "\x1f") }
