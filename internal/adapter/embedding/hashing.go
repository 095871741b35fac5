package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"finrag/internal/adapter/analyzer"
)

// HashingEmbedder is an offline embedder: every term and every character trigram
// is hashed into a signed bucket, then the vector is L2-normalized.
// It needs no model files and is fully deterministic.
type HashingEmbedder struct {
	dimension int
	model     string
	tokenizer *analyzer.Tokenizer
}

const (
	// DefaultHashingDimension is used when no dimension is configured.
	DefaultHashingDimension = 384

	// termWeight favours whole-term matches over trigram overlap.
	termWeight = 2.0
)

func NewHashingEmbedder(model string, dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashingDimension
	}
	return &HashingEmbedder{
		dimension: dimension,
		model:     model,
		tokenizer: analyzer.NewTokenizer(),
	}
}

func (e *HashingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.embedOne(text)
	}
	return embeddings, nil
}

func (e *HashingEmbedder) embedOne(text string) []float32 {
	acc := make([]float64, e.dimension)
	for _, term := range e.tokenizer.Tokenize(text) {
		e.add(acc, "t:"+term, termWeight)
		for _, gram := range analyzer.Trigrams(term) {
			e.add(acc, "g:"+gram, 1)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (e *HashingEmbedder) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(e.dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[bucket] += weight
}

func (e *HashingEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashingEmbedder) ModelName() string {
	return e.model
}
