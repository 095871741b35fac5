package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"finrag/internal/adapter/embedding"
	"finrag/internal/adapter/metrics"
	"finrag/internal/adapter/retriever"
	"finrag/internal/domain"
	"finrag/internal/port"
)

// ErrRetrievalUnavailable marks query failures the caller may retry: an
// unreachable embedding service or an expired context. Other failures are
// returned unwrapped.
var ErrRetrievalUnavailable = errors.New("retrieval temporarily unavailable")

// DefaultTopK is used when neither the caller nor the config picks k.
const DefaultTopK = 4

// RetrieveUseCase answers queries against a built index.
type RetrieveUseCase struct {
	retriever   port.Retriever
	filter      *retriever.RelevanceFilter
	defaultTopK int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewRetrieveUseCase creates a new retrieve use case. metrics may be nil.
func NewRetrieveUseCase(
	r port.Retriever,
	filter *retriever.RelevanceFilter,
	defaultTopK int,
	m *metrics.Metrics,
	logger *zap.Logger,
) *RetrieveUseCase {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	if filter == nil {
		filter = retriever.NewRelevanceFilter(retriever.DefaultRelevanceRatio)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrieveUseCase{
		retriever:   r,
		filter:      filter,
		defaultTopK: defaultTopK,
		metrics:     m,
		logger:      logger,
	}
}

// Retrieve returns at most topK results for query, best first, after the
// relevance filter. topK == 0 uses the default; a negative topK is
// clamped to one result.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK int) ([]domain.Result, error) {
	start := time.Now()
	if topK == 0 {
		topK = u.defaultTopK
	}

	candidates, err := u.retriever.Search(ctx, query, topK)
	if err != nil {
		u.observe("error", start, 0, 0)
		u.logger.Warn("retrieval failed", zap.Error(err))
		if retryable(err) {
			return nil, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
		}
		return nil, err
	}

	results := u.filter.Filter(candidates)
	u.observe("ok", start, len(results), len(candidates)-len(results))

	u.logger.Debug("retrieved",
		zap.Int("top_k", topK),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}

// retryable reports whether err may clear up on its own: the embedding
// service was unreachable or the call ran out of time.
func retryable(err error) bool {
	return errors.Is(err, embedding.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func (u *RetrieveUseCase) observe(outcome string, start time.Time, results, filtered int) {
	if u.metrics == nil {
		return
	}
	u.metrics.RetrievalsTotal.WithLabelValues(outcome).Inc()
	u.metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	if outcome == "ok" {
		u.metrics.RetrievalResults.Observe(float64(results))
		u.metrics.FilteredTotal.Add(float64(filtered))
		u.metrics.EmbeddedTexts.WithLabelValues("query").Inc()
	}
}
