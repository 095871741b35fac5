package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/internal/domain"
)

const (
	newsCSV = `date,headline,body,sentiment
2024-10-01,Apple posts solid earnings beat,Apple reported quarterly results ahead of consensus.,positive
2024-10-02,Tesla issues cautious guidance,"Tesla guided to slower growth, citing FX headwinds.",
`
	stocksCSV = `symbol,date,open,high,low,close,volume
TSLA,2024-10-01,250.0,255.0,248.0,252.0,1000
TSLA,2024-10-02,252.0,256.0,250.0,254.0,1100
TSLA,2024-10-03,254.0,258.0,251.0,253.0,1200
TSLA,2024-10-04,253.0,259.0,252.0,258.0,1300
TSLA,2024-10-07,258.0,260.0,255.0,256.0,1400
TSLA,2024-10-08,256.0,262.0,254.0,260.0,1500
`
	reportsJSON = `[
  {"company": "Vertex Software", "period": "Q3 2024", "revenue": "$2.4B", "net_income": 410, "highlights": "Cloud ARR grew 32% YoY."}
]`
)

type fixture struct {
	dir   string
	files Files
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	return fixture{
		dir: dir,
		files: Files{
			News:    filepath.Join(dir, "news.csv"),
			Stocks:  filepath.Join(dir, "stocks.csv"),
			Reports: filepath.Join(dir, "reports.json"),
		},
	}
}

func (f fixture) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (f fixture) writeAll(t *testing.T) {
	f.write(t, f.files.News, newsCSV)
	f.write(t, f.files.Stocks, stocksCSV)
	f.write(t, f.files.Reports, reportsJSON)
}

func TestLoader_Load(t *testing.T) {
	f := newFixture(t)
	f.writeAll(t)

	docs, err := NewLoader(f.files, nil).Load()
	require.NoError(t, err)
	require.Len(t, docs, 4)

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"news-0", "news-1", "stock-TSLA", "report-0"}, ids)

	assert.Equal(t, domain.SourceNews, docs[0].Source)
	assert.Equal(t, domain.SourceStocks, docs[2].Source)
	assert.Equal(t, domain.SourceReports, docs[3].Source)

	for _, d := range docs {
		base := d.Meta.Base()
		assert.Equal(t, d.ID, base.ID)
		assert.Equal(t, d.Source, base.Source)
		assert.Equal(t, d.Text, base.Snippet)
	}
}

func TestLoader_NewsText(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.files.News, newsCSV)

	docs, err := NewLoader(f.files, nil).Load()
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t,
		"News (2024-10-01): Apple posts solid earnings beat. Body: Apple reported quarterly results ahead of consensus.. Reported sentiment: positive.",
		docs[0].Text)

	meta, ok := docs[1].Meta.(domain.NewsMeta)
	require.True(t, ok)
	assert.Equal(t, "neutral", meta.Sentiment, "missing sentiment defaults to neutral")
	assert.Equal(t, "Tesla issues cautious guidance", meta.Headline)
	assert.Contains(t, docs[1].Text, "citing FX headwinds")
}

func TestLoader_StocksKeepLastFiveRows(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.files.Stocks, stocksCSV)

	docs, err := NewLoader(f.files, nil).Load()
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.True(t, strings.HasPrefix(doc.Text, "Stock performance for TSLA. Recent candles:\n"))
	assert.NotContains(t, doc.Text, "2024-10-01", "oldest row is dropped")
	assert.Contains(t, doc.Text, "2024-10-08: open 256.0, high 262.0, low 254.0, close 260.0, volume 1500")

	meta, ok := doc.Meta.(domain.StockMeta)
	require.True(t, ok)
	assert.Equal(t, "TSLA", meta.Symbol)
	assert.Equal(t, 5, meta.Entries)
}

func TestLoader_StocksSortedBySymbol(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.files.Stocks, "symbol,date,close\nXOM,2024-10-01,115\nAAPL,2024-10-01,190\nJPM,2024-10-01,145\n")

	docs, err := NewLoader(f.files, nil).Load()
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "stock-AAPL", docs[0].ID)
	assert.Equal(t, "stock-JPM", docs[1].ID)
	assert.Equal(t, "stock-XOM", docs[2].ID)
}

func TestLoader_ReportNumbersKeepLiteral(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.files.Reports, reportsJSON)

	docs, err := NewLoader(f.files, nil).Load()
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t,
		"Company: Vertex Software, Period: Q3 2024.\nRevenue: $2.4B, Net Income: 410.\nHighlights: Cloud ARR grew 32% YoY..",
		docs[0].Text)

	meta, ok := docs[0].Meta.(domain.ReportMeta)
	require.True(t, ok)
	assert.Equal(t, "Vertex Software", meta.Company)
}

func TestLoader_NewsEmptyCellsKeepRowIndex(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.files.News, "date,headline,body,sentiment\n2024-10-01,First,Body,positive\n,,,\n\n2024-10-03,Third,Body,negative\n")

	docs, err := NewLoader(f.files, nil).Load()
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "news-2", docs[2].ID)
	assert.True(t, strings.HasPrefix(docs[1].Text, "News (N/A): ."))
	assert.True(t, strings.HasPrefix(docs[2].Text, "News (2024-10-03): Third."))
}

func TestLoader_MissingFiles(t *testing.T) {
	f := newFixture(t)

	docs, err := NewLoader(f.files, nil).Load()
	require.NoError(t, err)
	assert.Empty(t, docs)

	f.write(t, f.files.Reports, reportsJSON)
	docs, err = NewLoader(f.files, nil).Load()
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestLoader_Malformed(t *testing.T) {
	t.Run("reports", func(t *testing.T) {
		f := newFixture(t)
		f.write(t, f.files.Reports, `{"company": "not an array"}`)

		_, err := NewLoader(f.files, nil).Load()
		assert.Error(t, err)
	})

	t.Run("news quoting", func(t *testing.T) {
		f := newFixture(t)
		f.write(t, f.files.News, "\ufeffdate,headline,body,sentiment\n2024-10-01,Beat,Body,positive\n")

		docs, err := NewLoader(f.files, nil).Load()
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.True(t, strings.HasPrefix(docs[0].Text, "News (2024-10-01): Beat."))
	})
}

func TestMarketOverview(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.files.Stocks, `symbol,date,close
MSFT,2024-10-02,400
AAPL,2024-10-02,200
AAPL,2024-10-01,190
XOM,2024-10-01,0
XOM,2024-10-02,115
`)

	snapshots, err := MarketOverview(f.files.Stocks)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)

	aapl := snapshots[0]
	assert.Equal(t, "AAPL", aapl.Symbol)
	assert.Equal(t, "2024-10-02", aapl.Date, "rows are ordered by date")
	assert.Equal(t, 200.0, aapl.LastClose)
	require.NotNil(t, aapl.PrevClose)
	assert.Equal(t, 190.0, *aapl.PrevClose)
	require.NotNil(t, aapl.PctChange)
	assert.InDelta(t, 5.263, *aapl.PctChange, 1e-3)

	msft := snapshots[1]
	assert.Nil(t, msft.PrevClose)
	assert.Nil(t, msft.PctChange)

	xom := snapshots[2]
	require.NotNil(t, xom.PrevClose)
	assert.Nil(t, xom.PctChange, "no change against a zero close")
}

func TestMarketOverview_MissingFile(t *testing.T) {
	snapshots, err := MarketOverview(filepath.Join(t.TempDir(), "stocks.csv"))
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}
