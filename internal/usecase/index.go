package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"finrag/internal/adapter/cache"
	"finrag/internal/adapter/metrics"
	"finrag/internal/adapter/source"
	"finrag/internal/adapter/store"
	"finrag/internal/domain"
	"finrag/internal/port"
)

var (
	// ErrEmptyCorpus is returned when no source yields a document.
	ErrEmptyCorpus = errors.New("no documents available to index")

	// ErrIndexBuild wraps embedding or index failures during a build.
	ErrIndexBuild = errors.New("index build failed")
)

// DefaultBatchSize is the number of documents embedded per call during a build.
const DefaultBatchSize = 16

// ProgressFunc reports embedded documents out of total.
type ProgressFunc func(done, total int)

// IndexUseCase builds the serving index, restoring it from the cache when the
// source files are unchanged.
type IndexUseCase struct {
	loader    *source.Loader
	embedder  port.Embedder
	cache     *cache.IndexCache
	batchSize int
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewIndexUseCase creates a new index use case. metrics may be nil.
func NewIndexUseCase(
	loader *source.Loader,
	embedder port.Embedder,
	cache *cache.IndexCache,
	batchSize int,
	m *metrics.Metrics,
	logger *zap.Logger,
) *IndexUseCase {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexUseCase{
		loader:    loader,
		embedder:  embedder,
		cache:     cache,
		batchSize: batchSize,
		metrics:   m,
		logger:    logger,
	}
}

// BuildOptions tunes a single build.
type BuildOptions struct {
	Force    bool // ignore a valid cache and re-embed
	Progress ProgressFunc
}

// BuildResult is a ready index with its slot-aligned metadata.
type BuildResult struct {
	Index       *store.FlatIndex
	Metadata    []domain.Metadata
	Fingerprint string
	BuildID     string // empty when the build could not be persisted
	CacheHit    bool
	Embedded    int
	Duration    time.Duration
}

// Build loads the corpus and returns an index over it.
func (u *IndexUseCase) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	start := time.Now()

	// Fingerprint before reading, so a file changed mid-build is seen as
	// stale on the next start rather than cached as fresh.
	fingerprint := cache.ComputeFingerprint(u.loader.Files().Paths()...)

	docs, err := u.loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}

	model := u.embedder.ModelName()
	dimension := u.embedder.Dimension()

	if !opts.Force {
		if entry, ok := u.cache.Load(fingerprint, model, dimension); ok {
			u.logger.Info("loaded index from cache",
				zap.Int("documents", entry.Index.Len()),
				zap.String("build_id", entry.BuildID),
			)
			u.observeBuild("hit", entry.Index.Len())
			return &BuildResult{
				Index:       entry.Index,
				Metadata:    entry.Metadata,
				Fingerprint: fingerprint,
				BuildID:     entry.BuildID,
				CacheHit:    true,
				Duration:    time.Since(start),
			}, nil
		}
	}

	u.logger.Info("building index",
		zap.Int("documents", len(docs)),
		zap.String("model", model),
		zap.Int("dimension", dimension),
	)

	index, err := u.embedCorpus(ctx, docs, dimension, opts.Progress)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexBuild, err)
	}

	metadata := make([]domain.Metadata, len(docs))
	for i, doc := range docs {
		metadata[i] = doc.Meta
	}

	buildID, err := u.cache.Store(fingerprint, model, index, metadata)
	if err != nil {
		u.logger.Warn("failed to persist index, serving from memory", zap.Error(err))
		buildID = ""
	}

	u.observeBuild("miss", index.Len())
	u.logger.Info("index built",
		zap.Int("documents", index.Len()),
		zap.String("build_id", buildID),
		zap.String("index_file", u.cache.IndexPath()),
		zap.String("metadata_file", u.cache.MetadataPath()),
		zap.Duration("duration", time.Since(start)),
	)

	return &BuildResult{
		Index:       index,
		Metadata:    metadata,
		Fingerprint: fingerprint,
		BuildID:     buildID,
		Embedded:    len(docs),
		Duration:    time.Since(start),
	}, nil
}

func (u *IndexUseCase) embedCorpus(ctx context.Context, docs []domain.Document, dimension int, progress ProgressFunc) (*store.FlatIndex, error) {
	index := store.NewFlatIndex(dimension)

	for i := 0; i < len(docs); i += u.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(i+u.batchSize, len(docs))

		texts := make([]string, 0, end-i)
		for _, doc := range docs[i:end] {
			texts = append(texts, doc.Text)
		}

		vectors, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d failed: %w", i, end, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embedding batch %d-%d returned %d vectors", i, end, len(vectors))
		}
		if err := index.Add(vectors); err != nil {
			return nil, err
		}

		if u.metrics != nil {
			u.metrics.EmbeddedTexts.WithLabelValues("build").Add(float64(len(texts)))
		}
		if progress != nil {
			progress(end, len(docs))
		}
	}

	return index, nil
}

func (u *IndexUseCase) observeBuild(outcome string, documents int) {
	if u.metrics == nil {
		return
	}
	u.metrics.IndexBuildsTotal.WithLabelValues(outcome).Inc()
	u.metrics.DocumentsIndexed.Set(float64(documents))
}
