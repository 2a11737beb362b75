// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest-neighbor search over fixed-dimension float32 vectors.
//
// Vectors are normalized to unit length at insertion, so similarity is the
// plain dot product and distance is 1 - dot. Queries are normalized at
// search time; callers never need to pre-normalize.
//
// The index is not safe for concurrent mutation: Add, Remove, and Reset must
// not overlap with each other or with Search. Concurrent Search calls are
// fine. The embedding application enforces this (see package localdb).
package hnsw

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/burrowdb/burrow/vector"
)

// Tuning defaults. M bounds node degree (2M at layer 0); the ef values size
// the dynamic candidate list during construction and search.
const (
	DefaultM              = 16
	DefaultEFConstruction = 200
	DefaultEFSearch       = 50
)

// node is one indexed vector with its per-layer adjacency lists.
// layers[0] is the base layer; len(layers)-1 is the node's top layer.
type node struct {
	vector []float32
	layers [][]string
}

// Index is an HNSW graph bound to a single vector dimension.
type Index struct {
	dim            int
	m              int
	efConstruction int
	efSearch       int
	levelMult      float64

	nodes    map[string]*node
	entry    string
	maxLayer int

	rng *rand.Rand
}

// Option configures an Index.
type Option func(*Index)

// WithM sets the maximum neighbor count per node at layers above 0
// (layer 0 allows 2M).
func WithM(m int) Option {
	return func(x *Index) { x.m = m }
}

// WithEFConstruction sets the candidate list size used during insertion.
func WithEFConstruction(ef int) Option {
	return func(x *Index) { x.efConstruction = ef }
}

// WithEFSearch sets the minimum candidate list size used during search.
// Search always uses at least the requested result count.
func WithEFSearch(ef int) Option {
	return func(x *Index) { x.efSearch = ef }
}

// WithSeed makes layer assignment deterministic, so tests can assert exact
// graph shape.
func WithSeed(seed int64) Option {
	return func(x *Index) { x.rng = rand.New(rand.NewSource(seed)) }
}

// New creates an empty index bound to the given dimension.
func New(dimension int, opts ...Option) *Index {
	x := &Index{
		dim:            dimension,
		m:              DefaultM,
		efConstruction: DefaultEFConstruction,
		efSearch:       DefaultEFSearch,
		nodes:          make(map[string]*node),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(x)
	}
	x.levelMult = 1 / math.Log(float64(x.m))
	return x
}

// Dimension returns the vector dimension the index is bound to.
func (x *Index) Dimension() int { return x.dim }

// Len returns the number of indexed vectors.
func (x *Index) Len() int { return len(x.nodes) }

// Reset discards the whole graph and rebinds the index to dimension.
// Existing vectors are lost; the caller rebuilds from its source of truth.
func (x *Index) Reset(dimension int) error {
	x.dim = dimension
	x.nodes = make(map[string]*node)
	x.entry = ""
	x.maxLayer = 0
	return nil
}

// Add inserts vec under id. Re-adding an existing id replaces its vector.
// The vector is normalized before insertion.
func (x *Index) Add(ctx context.Context, id string, vec []float32) error {
	if len(vec) != x.dim {
		return fmt.Errorf("%w: vector has %d dimensions, index bound to %d",
			vector.ErrDimensionMismatch, len(vec), x.dim)
	}

	if _, exists := x.nodes[id]; exists {
		x.remove(id)
	}

	v := vector.Normalize(vec)
	level := x.randomLevel()
	n := &node{vector: v, layers: make([][]string, level+1)}

	if len(x.nodes) == 0 {
		x.nodes[id] = n
		x.entry = id
		x.maxLayer = level
		return nil
	}

	x.nodes[id] = n

	// Greedy descent through the layers above the new node's level.
	ep := x.entry
	for l := x.maxLayer; l > level; l-- {
		ep = x.greedyClosest(v, ep, l)
	}

	// Best-first search and bidirectional linking at each layer the node
	// participates in.
	top := level
	if x.maxLayer < top {
		top = x.maxLayer
	}
	for l := top; l >= 0; l-- {
		candidates := x.searchLayer(v, ep, x.efConstruction, l)
		bound := x.m
		if l == 0 {
			bound = 2 * x.m
		}

		limit := bound
		if len(candidates) < limit {
			limit = len(candidates)
		}
		for _, c := range candidates[:limit] {
			n.layers[l] = append(n.layers[l], c.id)
			nb := x.nodes[c.id]
			nb.layers[l] = append(nb.layers[l], id)
			x.pruneNeighbors(c.id, l, bound)
		}
		if len(candidates) > 0 {
			ep = candidates[0].id
		}
	}

	if level > x.maxLayer {
		x.entry = id
		x.maxLayer = level
	}
	return nil
}

// Remove deletes id from every adjacency list it appears in and, if it was
// the entry point, promotes the highest-remaining-layer node.
func (x *Index) Remove(ctx context.Context, id string) (bool, error) {
	if _, ok := x.nodes[id]; !ok {
		return false, nil
	}
	x.remove(id)
	return true, nil
}

func (x *Index) remove(id string) {
	x.unlink(id)
	delete(x.nodes, id)

	if x.entry == id {
		x.entry = ""
		x.maxLayer = 0
		for nid, n := range x.nodes {
			if top := len(n.layers) - 1; x.entry == "" || top > x.maxLayer {
				x.entry = nid
				x.maxLayer = top
			}
		}
	}
}

// Search returns up to count matches above threshold, ranked by descending
// similarity. An empty index yields no results; a query with the wrong
// dimension is a hard error.
func (x *Index) Search(ctx context.Context, query []float32, count int, threshold float32) ([]vector.Match, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index bound to %d",
			vector.ErrDimensionMismatch, len(query), x.dim)
	}
	if count <= 0 || len(x.nodes) == 0 {
		return nil, nil
	}

	q := vector.Normalize(query)

	ep := x.entry
	for l := x.maxLayer; l > 0; l-- {
		ep = x.greedyClosest(q, ep, l)
	}

	ef := x.efSearch
	if count > ef {
		ef = count
	}
	candidates := x.searchLayer(q, ep, ef, 0)

	matches := make([]vector.Match, 0, count)
	for _, c := range candidates {
		sim := 1 - c.dist
		if sim < threshold {
			continue
		}
		matches = append(matches, vector.Match{ID: c.id, Similarity: sim})
		if len(matches) == count {
			break
		}
	}
	return matches, nil
}

// unlink removes id from every other node's adjacency lists. Links are not
// guaranteed symmetric after pruning, so this scans all nodes rather than
// only id's own neighbor lists.
func (x *Index) unlink(id string) {
	for nid, n := range x.nodes {
		if nid == id {
			continue
		}
		for l, neighbors := range n.layers {
			kept := neighbors[:0]
			for _, nb := range neighbors {
				if nb != id {
					kept = append(kept, nb)
				}
			}
			n.layers[l] = kept
		}
	}
}

// pruneNeighbors trims id's adjacency list at layer l back down to bound,
// keeping the closest neighbors.
func (x *Index) pruneNeighbors(id string, l, bound int) {
	n := x.nodes[id]
	if len(n.layers[l]) <= bound {
		return
	}

	neighbors := make([]scored, 0, len(n.layers[l]))
	for _, nb := range n.layers[l] {
		neighbors = append(neighbors, scored{id: nb, dist: x.distanceTo(n.vector, nb)})
	}
	sortScored(neighbors)

	kept := make([]string, bound)
	for i := 0; i < bound; i++ {
		kept[i] = neighbors[i].id
	}
	n.layers[l] = kept
}

// randomLevel draws a layer from an exponential distribution so higher
// layers are exponentially sparser.
func (x *Index) randomLevel() int {
	r := x.rng.Float64()
	if r < 1e-12 {
		r = 1e-12
	}
	return int(-math.Log(r) * x.levelMult)
}

// distanceTo returns the cosine distance (1 - dot) between a normalized
// query vector and a stored node.
func (x *Index) distanceTo(q []float32, id string) float32 {
	return 1 - vector.Dot(q, x.nodes[id].vector)
}
