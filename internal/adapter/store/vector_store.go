package store

import (
	"errors"
	"fmt"
	"sort"

	"finrag/internal/port"
)

// ErrInvalidK is returned by Search when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// FlatIndex is an exact inner-product index over normalized vectors.
// Brute force: corpora here are hundreds to low thousands of documents.
//
// Add is only called while building; Search never writes, so a built index
// can be shared by concurrent readers without locking.
type FlatIndex struct {
	dimension int
	vectors   [][]float32
}

var _ port.VectorIndex = (*FlatIndex)(nil)

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dimension int) *FlatIndex {
	return &FlatIndex{dimension: dimension}
}

// Add appends vectors in call order.
func (x *FlatIndex) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != x.dimension {
			return fmt.Errorf("vector %d dimension mismatch: expected %d, got %d", i, x.dimension, len(v))
		}
	}
	for _, v := range vectors {
		x.vectors = append(x.vectors, append([]float32(nil), v...))
	}
	return nil
}

// Search returns the min(k, Len()) best slots by inner product.
// Equal scores are ordered by ascending slot.
func (x *FlatIndex) Search(query []float32, k int) ([]port.VectorHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(query) != x.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", x.dimension, len(query))
	}
	if len(x.vectors) == 0 {
		return []port.VectorHit{}, nil
	}

	hits := make([]port.VectorHit, len(x.vectors))
	for slot, v := range x.vectors {
		hits[slot] = port.VectorHit{Slot: slot, Score: dot(query, v)}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Slot < hits[j].Slot
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k:k], nil
}

// Len returns the number of vectors in the index.
func (x *FlatIndex) Len() int {
	return len(x.vectors)
}

// Dimension returns the vector dimension.
func (x *FlatIndex) Dimension() int {
	return x.dimension
}

// Vector returns the stored vector at slot.
func (x *FlatIndex) Vector(slot int) []float32 {
	return x.vectors[slot]
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
