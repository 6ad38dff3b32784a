// Package ingest reads loci and interaction tables from tab-delimited text.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"locinet/internal/locus"
	"locinet/internal/network"
)

func newTabReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}

// ReadLoci parses a GMT file: locus name, a description column that is
// dropped, then the locus genes. Rows with no genes are rejected by
// locus.NewSet.
func ReadLoci(r io.Reader) (locus.Set, error) {
	reader := newTabReader(r)
	var loci []locus.Locus
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return locus.Set{}, fmt.Errorf("read loci: %w", err)
		}
		if len(trimFields(append([]string(nil), record...))) == 0 {
			continue
		}
		l := locus.Locus{Name: strings.TrimSpace(record[0])}
		if len(record) > 2 {
			l.Genes = trimFields(record[2:])
		}
		loci = append(loci, l)
	}
	return locus.NewSet(loci)
}

// ReadInteractions parses gene1, gene2, weight rows. A pair may be listed in
// one direction or both; when both are listed the weights must agree.
func ReadInteractions(r io.Reader) (*network.Graph, error) {
	reader := newTabReader(r)
	adj := map[string]map[string]float64{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read interactions: %w", err)
		}
		record = trimFields(record)
		if len(record) == 0 {
			continue
		}
		line, _ := reader.FieldPos(0)
		if len(record) != 3 {
			return nil, fmt.Errorf("read interactions: line %d: want 3 columns, got %d", line, len(record))
		}
		u, v := record[0], record[1]
		w, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("read interactions: line %d: %w", line, err)
		}
		if u == v {
			return nil, fmt.Errorf("read interactions: line %d: %w: %s", line, network.ErrSelfLoop, u)
		}
		if prev, ok := adj[u][v]; ok && prev != w {
			return nil, &network.MalformedGraphError{From: u, To: v, Weight: w, Reverse: prev}
		}
		setWeight(adj, u, v, w)
		setWeight(adj, v, u, w)
	}
	return network.FromAdjacency(adj)
}

func setWeight(adj map[string]map[string]float64, u, v string, w float64) {
	nbrs, ok := adj[u]
	if !ok {
		nbrs = map[string]float64{}
		adj[u] = nbrs
	}
	nbrs[v] = w
}

// trimFields drops blank cells and surrounding whitespace.
func trimFields(record []string) []string {
	out := record[:0]
	for _, field := range record {
		field = strings.TrimSpace(field)
		if field != "" {
			out = append(out, field)
		}
	}
	return out
}

func LoadLociFile(path string) (locus.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return locus.Set{}, err
	}
	defer f.Close()
	set, err := ReadLoci(f)
	if err != nil {
		return locus.Set{}, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

func LoadInteractionsFile(path string) (*network.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := ReadInteractions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}
