package port

import "context"

// Embedder generates unit-length vector embeddings for text.
type Embedder interface {
	// Embed returns one L2-normalized vector per input text, in input order.
	// Batch and single-text calls share the same normalization.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex is an append-only exact nearest-neighbour index.
// Slot numbers are assigned in append order.
type VectorIndex interface {
	// Add appends vectors; the first gets slot Len().
	Add(vectors [][]float32) error

	// Search returns up to k hits, best first, ties broken by ascending slot.
	Search(query []float32, k int) ([]VectorHit, error)

	// Len returns the number of stored vectors.
	Len() int

	// Dimension returns the vector dimension.
	Dimension() int
}

// VectorHit is a search hit.
type VectorHit struct {
	Slot  int     // Position in the index (and in the corpus)
	Score float64 // Inner product with the query (higher is better)
}
