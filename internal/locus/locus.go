// Package locus models disjoint groups of candidate genes. Exactly one gene
// per locus is chosen when a locus subnetwork is sampled.
package locus

import (
	"fmt"
	"sort"
)

// EmptyLociError reports a locus with no genes, or an empty collection when
// Index is -1.
type EmptyLociError struct {
	Index int
	Name  string
}

func (e *EmptyLociError) Error() string {
	if e.Index < 0 {
		return "locus: collection has no loci"
	}
	return fmt.Sprintf("locus: locus %d (%q) has no genes", e.Index, e.Name)
}

// DuplicateGeneError reports a gene that belongs to more than one locus.
type DuplicateGeneError struct {
	Gene   string
	First  int
	Second int
}

func (e *DuplicateGeneError) Error() string {
	return fmt.Sprintf("locus: gene %q appears in loci %d and %d", e.Gene, e.First, e.Second)
}

type Locus struct {
	Name  string   `json:"name"`
	Genes []string `json:"genes"`
}

// Set is an ordered, validated collection of loci with a gene to locus index.
type Set struct {
	loci   []Locus
	owners map[string]int
}

// NewSet validates that every locus is non-empty and that no gene is shared
// between loci. Repeated genes inside one locus are collapsed.
func NewSet(loci []Locus) (Set, error) {
	if len(loci) == 0 {
		return Set{}, &EmptyLociError{Index: -1}
	}
	s := Set{
		loci:   make([]Locus, 0, len(loci)),
		owners: map[string]int{},
	}
	for i, l := range loci {
		genes := make([]string, 0, len(l.Genes))
		for _, gene := range l.Genes {
			if gene == "" {
				continue
			}
			if prev, ok := s.owners[gene]; ok {
				if prev == i {
					continue
				}
				return Set{}, &DuplicateGeneError{Gene: gene, First: prev, Second: i}
			}
			s.owners[gene] = i
			genes = append(genes, gene)
		}
		if len(genes) == 0 {
			return Set{}, &EmptyLociError{Index: i, Name: l.Name}
		}
		name := l.Name
		if name == "" {
			name = fmt.Sprintf("locus-%d", i)
		}
		s.loci = append(s.loci, Locus{Name: name, Genes: genes})
	}
	return s, nil
}

func (s Set) Len() int { return len(s.loci) }

// At returns the locus at position i. The gene slice is shared; callers must
// not modify it.
func (s Set) At(i int) Locus { return s.loci[i] }

// Loci returns a deep copy of every locus in order.
func (s Set) Loci() []Locus {
	out := make([]Locus, len(s.loci))
	for i, l := range s.loci {
		out[i] = Locus{Name: l.Name, Genes: append([]string(nil), l.Genes...)}
	}
	return out
}

// IndexOf returns the locus position owning gene.
func (s Set) IndexOf(gene string) (int, bool) {
	idx, ok := s.owners[gene]
	return idx, ok
}

// Genes returns every gene across all loci, sorted.
func (s Set) Genes() []string {
	out := make([]string, 0, len(s.owners))
	for gene := range s.owners {
		out = append(out, gene)
	}
	sort.Strings(out)
	return out
}

// GeneCount is the size of the gene universe.
func (s Set) GeneCount() int { return len(s.owners) }
