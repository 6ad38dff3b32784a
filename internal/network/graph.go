// Package network holds the weighted, undirected interaction graph that every
// sampling and scoring step reads from. A Graph is immutable once built and
// symmetric by construction: Builder.AddEdge always writes both directions.
package network

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrSelfLoop       = errors.New("network: self-loop not allowed")
	ErrNegativeWeight = errors.New("network: edge weight must be a finite non-negative number")
	ErrEmptyGene      = errors.New("network: gene id is empty")
)

// MalformedGraphError reports an adjacency input whose u->v entry has no
// matching v->u entry, or whose two directions disagree on weight.
type MalformedGraphError struct {
	From    string
	To      string
	Weight  float64
	Reverse float64
	Missing bool
}

func (e *MalformedGraphError) Error() string {
	if e.Missing {
		return fmt.Sprintf("network: edge %s->%s has no symmetric counterpart", e.From, e.To)
	}
	return fmt.Sprintf("network: edge %s->%s weight %g disagrees with reverse weight %g", e.From, e.To, e.Weight, e.Reverse)
}

// Graph stores genes in an index arena and per-gene neighbor maps keyed by
// index. The zero value is an empty graph.
type Graph struct {
	genes []string
	index map[string]int
	adj   []map[int]float64
	edges int
}

// Builder accumulates edges before freezing them into a Graph.
type Builder struct {
	g     *Graph
	built bool
}

func NewBuilder() *Builder {
	return &Builder{g: &Graph{index: map[string]int{}}}
}

// AddGene registers a gene without edges. It is a no-op for known genes.
func (b *Builder) AddGene(gene string) error {
	if gene == "" {
		return ErrEmptyGene
	}
	b.intern(gene)
	return nil
}

// AddEdge inserts u-v with weight w in both directions. Re-adding an existing
// edge overwrites its weight on both sides.
func (b *Builder) AddEdge(u, v string, w float64) error {
	if b.built {
		return fmt.Errorf("network: builder already finalized")
	}
	if u == "" || v == "" {
		return ErrEmptyGene
	}
	if u == v {
		return fmt.Errorf("%w: %s", ErrSelfLoop, u)
	}
	if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("%w: %s-%s=%v", ErrNegativeWeight, u, v, w)
	}
	ui := b.intern(u)
	vi := b.intern(v)
	if _, ok := b.g.adj[ui][vi]; !ok {
		b.g.edges++
	}
	b.g.adj[ui][vi] = w
	b.g.adj[vi][ui] = w
	return nil
}

// Build returns the finished graph. The builder cannot be reused.
func (b *Builder) Build() *Graph {
	b.built = true
	return b.g
}

func (b *Builder) intern(gene string) int {
	if idx, ok := b.g.index[gene]; ok {
		return idx
	}
	idx := len(b.g.genes)
	b.g.genes = append(b.g.genes, gene)
	b.g.index[gene] = idx
	b.g.adj = append(b.g.adj, map[int]float64{})
	return idx
}

// FromAdjacency validates a caller-supplied nested neighbor map and builds a
// Graph from it. Every u->v entry must be mirrored by an equal v->u entry.
func FromAdjacency(adj map[string]map[string]float64) (*Graph, error) {
	sources := make([]string, 0, len(adj))
	for gene := range adj {
		sources = append(sources, gene)
	}
	sort.Strings(sources)

	b := NewBuilder()
	for _, u := range sources {
		if err := b.AddGene(u); err != nil {
			return nil, err
		}
		targets := make([]string, 0, len(adj[u]))
		for v := range adj[u] {
			targets = append(targets, v)
		}
		sort.Strings(targets)
		for _, v := range targets {
			w := adj[u][v]
			reverse, ok := adj[v][u]
			if !ok {
				return nil, &MalformedGraphError{From: u, To: v, Weight: w, Missing: true}
			}
			if reverse != w {
				return nil, &MalformedGraphError{From: u, To: v, Weight: w, Reverse: reverse}
			}
			if err := b.AddEdge(u, v, w); err != nil {
				return nil, err
			}
		}
	}
	return b.Build(), nil
}

func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.genes)
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	if g == nil {
		return 0
	}
	return g.edges
}

// Degree returns the neighbor count of gene, or 0 when gene is absent.
func (g *Graph) Degree(gene string) int {
	if g == nil {
		return 0
	}
	idx, ok := g.index[gene]
	if !ok {
		return 0
	}
	return len(g.adj[idx])
}

// MaxDegree returns the largest degree in the graph.
func (g *Graph) MaxDegree() int {
	if g == nil {
		return 0
	}
	max := 0
	for _, nbrs := range g.adj {
		if len(nbrs) > max {
			max = len(nbrs)
		}
	}
	return max
}

// Weight returns the weight of u-v and whether the edge exists.
func (g *Graph) Weight(u, v string) (float64, bool) {
	if g == nil {
		return 0, false
	}
	ui, ok := g.index[u]
	if !ok {
		return 0, false
	}
	vi, ok := g.index[v]
	if !ok {
		return 0, false
	}
	w, ok := g.adj[ui][vi]
	return w, ok
}

// Genes returns all gene ids sorted lexicographically.
func (g *Graph) Genes() []string {
	if g == nil {
		return nil
	}
	out := append([]string(nil), g.genes...)
	sort.Strings(out)
	return out
}
