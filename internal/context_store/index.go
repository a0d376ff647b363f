package context_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"github.com/coder/hnsw"

	"github.com/lewisedginton/contextmemory/internal/text_analysis"
)

const (
	// indexM is the HNSW neighbour count per node.
	indexM = 24
	// indexEfSearch is the search beam width. At store capacities of a few
	// thousand entries it keeps recall close to an exact scan.
	indexEfSearch = 200
)

// similarityIndex is an HNSW graph over the non-zero embeddings of the
// store, keyed by entry id. It is rebuilt after removals.
type similarityIndex struct {
	graph *hnsw.Graph[string]
	nodes int
}

func newSimilarityIndex() *similarityIndex {
	return &similarityIndex{graph: newGraph()}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = indexM
	g.EfSearch = indexEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

func (x *similarityIndex) add(id string, e text_analysis.Embedding) {
	if e.IsZero() {
		return
	}
	x.graph.Add(hnsw.MakeNode(id, e.Slice()))
	x.nodes++
}

// rebuild replaces the graph with one holding exactly entries.
func (x *similarityIndex) rebuild(entries map[string]*entry) {
	x.graph = newGraph()
	x.nodes = 0
	for id, e := range entries {
		x.add(id, e.Embedding)
	}
}

// nearest returns up to k candidate ids closest to q.
func (x *similarityIndex) nearest(q text_analysis.Embedding, k int) []string {
	if x.nodes == 0 || k <= 0 || q.IsZero() {
		return nil
	}
	if k > x.nodes {
		k = x.nodes
	}
	found := x.graph.Search(q.Slice(), k)
	ids := make([]string, 0, len(found))
	for _, n := range found {
		ids = append(ids, n.Key)
	}
	return ids
}
