package vector

import (
	"context"
	"errors"
	"math"
)

// ErrDimensionMismatch is returned when a vector's length does not match the
// dimension an index is bound to. It indicates caller misuse, not a
// recoverable runtime condition.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Match is one similarity-search result: a stored id and its cosine
// similarity to the query, in [-1, 1].
type Match struct {
	ID         string
	Similarity float32
}

// Index is the vector search backend interface.
// Implementations: hnsw.Index (native graph index, default), chromem.Index
// (exact search over chromem-go).
//
// Implementations are not required to be safe for concurrent mutation; the
// embedding application wraps the adapter in a single-writer /
// multiple-reader discipline.
type Index interface {
	// Dimension returns the vector dimension the index is bound to.
	Dimension() int

	// Len returns the number of indexed vectors.
	Len() int

	// Reset discards all indexed vectors and rebinds the index to the given
	// dimension. Destructive.
	Reset(dimension int) error

	// Add indexes vec under id, replacing any previous vector with that id.
	Add(ctx context.Context, id string, vec []float32) error

	// Remove deletes id from the index, reporting whether it was present.
	Remove(ctx context.Context, id string) (bool, error)

	// Search returns up to count ids ranked by descending similarity to
	// query, dropping results below threshold. Searching an empty index
	// returns no results and no error.
	Search(ctx context.Context, query []float32, count int, threshold float32) ([]Match, error)
}

// Snapshotter is implemented by indexes whose full state can be captured and
// reloaded, so a restart avoids replaying every insertion.
type Snapshotter interface {
	// Snapshot serializes the entire index into one self-contained blob.
	Snapshot() ([]byte, error)

	// Restore replaces the index state with a previously captured snapshot.
	Restore(data []byte) error
}

// Normalize returns a unit-length copy of vec. The zero vector is returned
// as a copy unchanged.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}

	out := make([]float32, len(vec))
	if norm == 0 {
		copy(out, vec)
		return out
	}

	inv := 1 / math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

// Dot returns the dot product of two equal-length vectors. For unit vectors
// this is their cosine similarity.
func Dot(a, b []float32) float32 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot)
}
