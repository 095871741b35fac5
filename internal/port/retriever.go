package port

import (
	"context"

	"finrag/internal/domain"
)

// Retriever searches the indexed corpus.
type Retriever interface {
	// Search returns up to k scored candidates for the query, best first.
	Search(ctx context.Context, query string, k int) ([]domain.Result, error)
}
