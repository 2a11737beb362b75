// Package chromem provides an exact-search vector.Index backed by
// chromem-go, a pure Go embedded vector database.
//
// It exists as the simple alternative to the native HNSW backend: exhaustive
// cosine search with no graph to maintain, suitable for small corpora and as
// a recall oracle in tests. It does not implement vector.Snapshotter; the
// adapter rebuilds it from the memories collection at startup.
package chromem

import (
	"context"
	"fmt"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/burrowdb/burrow/vector"
)

const collectionName = "vectors"

// Index is an exact-search index over a single chromem-go collection.
type Index struct {
	db  *chromemgo.DB
	col *chromemgo.Collection
	dim int
}

// New creates an empty exact-search index bound to the given dimension.
func New(dimension int) (*Index, error) {
	db := chromemgo.NewDB()
	col, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Index{db: db, col: col, dim: dimension}, nil
}

// Dimension returns the vector dimension the index is bound to.
func (x *Index) Dimension() int { return x.dim }

// Len returns the number of indexed vectors.
func (x *Index) Len() int { return x.col.Count() }

// Reset drops the collection and rebinds the index to dimension.
func (x *Index) Reset(dimension int) error {
	if err := x.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	col, err := x.db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	x.col = col
	x.dim = dimension
	return nil
}

// Add indexes vec under id, replacing any previous vector with that id.
// chromem-go normalizes embeddings internally, consistent with the HNSW
// backend's normalize-on-insert behavior.
func (x *Index) Add(ctx context.Context, id string, vec []float32) error {
	if len(vec) != x.dim {
		return fmt.Errorf("%w: vector has %d dimensions, index bound to %d",
			vector.ErrDimensionMismatch, len(vec), x.dim)
	}

	doc := chromemgo.Document{ID: id, Embedding: vec}
	if err := x.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Remove deletes id from the index, reporting whether it was present.
func (x *Index) Remove(ctx context.Context, id string) (bool, error) {
	before := x.col.Count()
	if before == 0 {
		return false, nil
	}
	if err := x.col.Delete(ctx, nil, nil, id); err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	return x.col.Count() < before, nil
}

// Search runs exhaustive cosine search, returning up to count matches above
// threshold ranked by descending similarity.
func (x *Index) Search(ctx context.Context, query []float32, count int, threshold float32) ([]vector.Match, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index bound to %d",
			vector.ErrDimensionMismatch, len(query), x.dim)
	}
	if count <= 0 {
		return nil, nil
	}

	// chromem-go rejects nResults larger than the collection.
	n := count
	if total := x.col.Count(); total < n {
		if total == 0 {
			return nil, nil
		}
		n = total
	}

	results, err := x.col.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	matches := make([]vector.Match, 0, len(results))
	for _, r := range results {
		if r.Similarity < threshold {
			continue
		}
		matches = append(matches, vector.Match{ID: r.ID, Similarity: r.Similarity})
	}
	return matches, nil
}
