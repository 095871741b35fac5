package retriever

import (
	"context"
	"fmt"

	"finrag/internal/domain"
	"finrag/internal/port"
)

// SemanticRetriever embeds the query and searches the vector index.
// metadata[i] describes index slot i.
type SemanticRetriever struct {
	index    port.VectorIndex
	embedder port.Embedder
	metadata []domain.Metadata
}

func NewSemanticRetriever(
	index port.VectorIndex,
	embedder port.Embedder,
	metadata []domain.Metadata,
) *SemanticRetriever {
	return &SemanticRetriever{
		index:    index,
		embedder: embedder,
		metadata: metadata,
	}
}

// Len returns the number of searchable vectors.
func (r *SemanticRetriever) Len() int {
	return r.index.Len()
}

// Search returns up to k candidates, best first. k is clamped to [1, Len()];
// an empty index yields no candidates.
func (r *SemanticRetriever) Search(ctx context.Context, query string, k int) ([]domain.Result, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embedding returned %d vectors for one query", len(embeddings))
	}

	total := r.index.Len()
	if total == 0 {
		return []domain.Result{}, nil
	}
	k = max(1, min(k, total))

	hits, err := r.index.Search(embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]domain.Result, 0, len(hits))
	for _, hit := range hits {
		if hit.Slot < 0 || hit.Slot >= len(r.metadata) {
			continue
		}
		results = append(results, domain.Result{
			Metadata: r.metadata[hit.Slot],
			Score:    hit.Score,
		})
	}

	return results, nil
}
