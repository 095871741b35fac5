package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/config"
	"finrag/internal/adapter/embedding"
	"finrag/internal/adapter/metrics"
	"finrag/internal/domain"
)

const (
	newsCSV = `date,headline,body,sentiment
2024-10-01,Apple posts solid earnings beat,Apple reported quarterly results ahead of consensus.,positive
2024-10-02,Tesla issues cautious guidance,Tesla guided to slower growth next quarter.,neutral
`
	stocksCSV = `symbol,date,open,high,low,close,volume
TSLA,2024-10-01,250.0,255.0,248.0,252.0,1000
TSLA,2024-10-02,252.0,256.0,250.0,254.0,1100
TSLA,2024-10-03,254.0,258.0,251.0,253.0,1200
TSLA,2024-10-04,253.0,259.0,252.0,258.0,1300
TSLA,2024-10-07,258.0,260.0,255.0,256.0,1400
TSLA,2024-10-08,256.0,262.0,254.0,260.0,1500
`
	reportsJSON = `[{"company": "Vertex Software", "period": "Q3 2024", "revenue": "$2.4B", "net_income": "$410M", "highlights": "Cloud ARR grew 32% YoY."}]`
)

// countingEmbedder counts texts embedded in batches of more than one, which
// only happens while building.
type countingEmbedder struct {
	inner      *embedding.HashingEmbedder
	calls      atomic.Int32
	buildTexts atomic.Int32
	err        error
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{inner: embedding.NewHashingEmbedder("hashing-test", 512)}
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	if len(texts) > 1 {
		c.buildTexts.Add(int32(len(texts)))
	}
	return c.inner.Embed(ctx, texts)
}
func (c *countingEmbedder) Dimension() int    { return c.inner.Dimension() }
func (c *countingEmbedder) ModelName() string { return c.inner.ModelName() }

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func setupCorpus(t *testing.T) (string, *config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	require.NoError(t, os.MkdirAll(filepath.Join(root, cfg.Data.Dir), 0755))

	news, stocks, reports := cfg.SourcePaths(root)
	require.NoError(t, os.WriteFile(news, []byte(newsCSV), 0644))
	require.NoError(t, os.WriteFile(stocks, []byte(stocksCSV), 0644))
	require.NoError(t, os.WriteFile(reports, []byte(reportsJSON), 0644))
	return root, cfg
}

func TestPipeline_BuildsAndRetrieves(t *testing.T) {
	root, cfg := setupCorpus(t)
	m := metrics.New()

	p, err := NewPipeline(context.Background(), Deps{Config: cfg, Root: root, Embedder: newCountingEmbedder(), Metrics: m})
	require.NoError(t, err)

	assert.Equal(t, 4, p.DocumentCount())
	assert.False(t, p.CacheHit())
	assert.NotEmpty(t, p.BuildID())
	assert.NotEmpty(t, p.Fingerprint())
	assert.Equal(t, "hashing-test", p.ModelName())

	results, err := p.Retrieve(context.Background(), "Tesla guidance", 4)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 4)
	assert.Equal(t, "news-1", results[0].Metadata.Base().ID)

	for i, r := range results {
		assert.True(t, r.Metadata.Base().Source.Valid())
		if i > 0 {
			assert.LessOrEqual(t, r.Score, results[i-1].Score)
		}
	}

	exposition := scrape(t, m)
	assert.Contains(t, exposition, `finrag_index_builds_total{cache="miss"} 1`)
	assert.Contains(t, exposition, "finrag_documents_indexed 4")
	assert.Contains(t, exposition, `finrag_retrievals_total{outcome="ok"} 1`)
	assert.Contains(t, exposition, `finrag_embedded_texts_total{phase="build"} 4`)
}

func TestPipeline_SecondBuildUsesCache(t *testing.T) {
	root, cfg := setupCorpus(t)

	first := newCountingEmbedder()
	p1, err := NewPipeline(context.Background(), Deps{Config: cfg, Root: root, Embedder: first})
	require.NoError(t, err)
	assert.Equal(t, int32(4), first.buildTexts.Load())

	second := newCountingEmbedder()
	p2, err := NewPipeline(context.Background(), Deps{Config: cfg, Root: root, Embedder: second})
	require.NoError(t, err)

	assert.True(t, p2.CacheHit())
	assert.Equal(t, int32(0), second.calls.Load(), "no embedding during a cached build")
	assert.Equal(t, p1.BuildID(), p2.BuildID())
	assert.Equal(t, p1.Fingerprint(), p2.Fingerprint())

	r1, err := p1.Retrieve(context.Background(), "cloud revenue", 4)
	require.NoError(t, err)
	r2, err := p2.Retrieve(context.Background(), "cloud revenue", 4)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestPipeline_ChangedFileRebuilds(t *testing.T) {
	root, cfg := setupCorpus(t)

	p1, err := NewPipeline(context.Background(), Deps{Config: cfg, Root: root, Embedder: newCountingEmbedder()})
	require.NoError(t, err)

	news, _, _ := cfg.SourcePaths(root)
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(news, later, later))

	embedder := newCountingEmbedder()
	p2, err := NewPipeline(context.Background(), Deps{Config: cfg, Root: root, Embedder: embedder})
	require.NoError(t, err)

	assert.False(t, p2.CacheHit())
	assert.Equal(t, int32(4), embedder.buildTexts.Load())
	assert.NotEqual(t, p1.Fingerprint(), p2.Fingerprint())
	assert.NotEqual(t, p1.BuildID(), p2.BuildID())

	p3, err := NewPipeline(context.Background(), Deps{Config: cfg, Root: root, Embedder: newCountingEmbedder()})
	require.NoError(t, err)
	assert.True(t, p3.CacheHit())
	assert.Equal(t, p2.Fingerprint(), p3.Fingerprint(), "the new fingerprint was persisted")
}

func TestPipeline_ForceRebuilds(t *testing.T) {
	root, cfg := setupCorpus(t)

	_, err := NewPipeline(context.Background(), Deps{Config: cfg, Root: root, Embedder: newCountingEmbedder()})
	require.NoError(t, err)

	embedder := newCountingEmbedder()
	var progressed []int
	p, err := NewPipeline(context.Background(), Deps{
		Config:   cfg,
		Root:     root,
		Embedder: embedder,
		Force:    true,
		Progress: func(done, total int) { progressed = append(progressed, done) },
	})
	require.NoError(t, err)
	assert.False(t, p.CacheHit())
	assert.Equal(t, int32(4), embedder.buildTexts.Load())
	assert.Equal(t, []int{4}, progressed)
}

func TestPipeline_EmptyCorpus(t *testing.T) {
	root := t.TempDir()

	_, err := NewPipeline(context.Background(), Deps{Root: root, Embedder: newCountingEmbedder()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyCorpus))
}

func TestPipeline_BuildEmbedFailure(t *testing.T) {
	root, cfg := setupCorpus(t)
	embedder := newCountingEmbedder()
	embedder.err = embedding.ErrUnavailable

	_, err := NewPipeline(context.Background(), Deps{Config: cfg, Root: root, Embedder: embedder})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexBuild))
}

func TestPipeline_CacheStoreFailureIsNotFatal(t *testing.T) {
	root, cfg := setupCorpus(t)

	// A non-empty directory where the index file should go makes the rename fail.
	cacheDir := cfg.CacheDir(root)
	require.NoError(t, os.MkdirAll(filepath.Join(cacheDir, cfg.Cache.IndexFile, "blocker"), 0755))

	p, err := NewPipeline(context.Background(), Deps{Config: cfg, Root: root, Embedder: newCountingEmbedder()})
	require.NoError(t, err)
	assert.Empty(t, p.BuildID())
	assert.Equal(t, 4, p.DocumentCount())
}

func TestPipeline_BatchSize(t *testing.T) {
	root, cfg := setupCorpus(t)
	cfg.Embedding.BatchSize = 3

	embedder := newCountingEmbedder()
	var progressed []int
	_, err := NewPipeline(context.Background(), Deps{
		Config:   cfg,
		Root:     root,
		Embedder: embedder,
		Progress: func(done, total int) {
			assert.Equal(t, 4, total)
			progressed = append(progressed, done)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), embedder.calls.Load())
	assert.Equal(t, []int{3, 4}, progressed)
}

func TestRetrieveUseCase_DefaultTopK(t *testing.T) {
	root, cfg := setupCorpus(t)
	cfg.Retrieve.TopK = 2
	cfg.Retrieve.RelevanceRatio = 1e-9

	p, err := NewPipeline(context.Background(), Deps{Config: cfg, Root: root, Embedder: newCountingEmbedder()})
	require.NoError(t, err)

	results, err := p.Retrieve(context.Background(), "Tesla Apple Vertex", 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)

	results, err = p.Retrieve(context.Background(), "Tesla Apple Vertex", -1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

type failingRetriever struct{ err error }

func (f failingRetriever) Search(context.Context, string, int) ([]domain.Result, error) {
	return nil, f.err
}

func TestRetrieveUseCase_Unavailable(t *testing.T) {
	m := metrics.New()
	u := NewRetrieveUseCase(failingRetriever{err: embedding.ErrUnavailable}, nil, 0, m, nil)

	_, err := u.Retrieve(context.Background(), "query", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetrievalUnavailable))
	assert.True(t, errors.Is(err, embedding.ErrUnavailable))
	assert.Contains(t, scrape(t, m), `finrag_retrievals_total{outcome="error"} 1`)
}

func TestRetrieveUseCase_RetryableErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"embedder unavailable", fmt.Errorf("failed to embed query: %w", embedding.ErrUnavailable), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, true},
		{"dimension mismatch", errors.New("vector search failed: query dimension 3, index dimension 512"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewRetrieveUseCase(failingRetriever{err: tt.err}, nil, 0, nil, nil)

			_, err := u.Retrieve(context.Background(), "query", 3)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.retryable, errors.Is(err, ErrRetrievalUnavailable))
		})
	}
}

func TestPipeline_ConcurrentRetrieve(t *testing.T) {
	root, cfg := setupCorpus(t)
	embedder := embedding.NewCachedEmbedder(embedding.NewHashingEmbedder("hashing-test", 512), 8)

	p, err := NewPipeline(context.Background(), Deps{Config: cfg, Root: root, Embedder: embedder})
	require.NoError(t, err)

	queries := []string{"Tesla guidance", "Vertex Software cloud revenue"}
	want := make([][]domain.Result, len(queries))
	for i, q := range queries {
		want[i], err = p.Retrieve(context.Background(), q, 4)
		require.NoError(t, err)
		require.NotEmpty(t, want[i])
	}

	const workers = 32
	const rounds = 20
	got := make([][]domain.Result, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				results, err := p.Retrieve(context.Background(), queries[w%len(queries)], 4)
				if err != nil {
					errs[w] = err
					return
				}
				got[w] = results
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		require.NoError(t, errs[w], "worker %d", w)
		assert.Equal(t, want[w%len(queries)], got[w], "worker %d", w)
	}
}
