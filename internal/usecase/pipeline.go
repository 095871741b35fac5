package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"finrag/config"
	"finrag/internal/adapter/cache"
	"finrag/internal/adapter/embedding"
	"finrag/internal/adapter/metrics"
	"finrag/internal/adapter/retriever"
	"finrag/internal/adapter/source"
	"finrag/internal/domain"
	"finrag/internal/port"
)

// Deps wires a Pipeline. Embedder, Metrics and Logger are optional; a nil
// Embedder is created from Config.Embedding.
type Deps struct {
	Config   *config.Config
	Root     string
	Embedder port.Embedder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Force    bool
	Progress ProgressFunc
}

// Pipeline is a built retrieval engine. It is immutable once NewPipeline
// returns and safe to share between goroutines.
type Pipeline struct {
	retrieve    *RetrieveUseCase
	documents   int
	fingerprint string
	buildID     string
	cacheHit    bool
	model       string
}

// NewPipeline loads the corpus, builds or restores the index and returns the
// engine serving it.
func NewPipeline(ctx context.Context, deps Deps) (*Pipeline, error) {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	embedder := deps.Embedder
	if embedder == nil {
		var err error
		embedder, err = embedding.New(cfg.Embedding)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.EnsureCacheDir(deps.Root); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	news, stocks, reports := cfg.SourcePaths(deps.Root)
	loader := source.NewLoader(source.Files{News: news, Stocks: stocks, Reports: reports}, logger)
	indexCache := cache.NewIndexCache(cfg.CacheDir(deps.Root), cfg.Cache.IndexFile, cfg.Cache.MetadataFile, logger)

	indexUC := NewIndexUseCase(loader, embedder, indexCache, cfg.Embedding.BatchSize, deps.Metrics, logger)
	built, err := indexUC.Build(ctx, BuildOptions{Force: deps.Force, Progress: deps.Progress})
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	semantic := retriever.NewSemanticRetriever(built.Index, embedder, built.Metadata)
	filter := retriever.NewRelevanceFilter(cfg.Retrieve.RelevanceRatio)

	return &Pipeline{
		retrieve:    NewRetrieveUseCase(semantic, filter, cfg.Retrieve.TopK, deps.Metrics, logger),
		documents:   built.Index.Len(),
		fingerprint: built.Fingerprint,
		buildID:     built.BuildID,
		cacheHit:    built.CacheHit,
		model:       embedder.ModelName(),
	}, nil
}

// Retrieve answers query; see RetrieveUseCase.Retrieve.
func (p *Pipeline) Retrieve(ctx context.Context, query string, topK int) ([]domain.Result, error) {
	return p.retrieve.Retrieve(ctx, query, topK)
}

// DocumentCount returns the number of indexed documents.
func (p *Pipeline) DocumentCount() int { return p.documents }

// Fingerprint returns the source fingerprint the index was built for.
func (p *Pipeline) Fingerprint() string { return p.fingerprint }

// BuildID identifies the persisted index; empty if it was never persisted.
func (p *Pipeline) BuildID() string { return p.buildID }

// CacheHit reports whether the index was restored from the cache.
func (p *Pipeline) CacheHit() bool { return p.cacheHit }

// ModelName returns the embedding model serving queries.
func (p *Pipeline) ModelName() string { return p.model }
