// Package seed appends synthetic demo data to the source files.
package seed

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/renameio"
)

// TradingDays is the number of weekday candles generated per symbol.
const TradingDays = 30

// Stock is a symbol and the price its series starts from.
type Stock struct {
	Symbol     string
	StartPrice float64
}

// DefaultStocks are the symbols added by Generate.
var DefaultStocks = []Stock{
	{"AAPL", 190},
	{"MSFT", 380},
	{"TSLA", 380},
	{"AMZN", 150},
	{"JPM", 145},
	{"XOM", 115},
}

// DefaultCompanies receive one news item per template.
var DefaultCompanies = []string{
	"Apple",
	"Microsoft",
	"Tesla",
	"Amazon",
	"JPMorgan Chase",
	"ExxonMobil",
	"Nova Energy",
	"Alpha Retail Group",
}

type newsTemplate struct {
	headline  string
	body      string
	sentiment string
}

var newsTemplates = []newsTemplate{
	{
		"%s posts solid earnings beat",
		"%s reported quarterly results ahead of consensus, with stronger-than-expected revenue in its core business lines.",
		"positive",
	},
	{
		"%s issues cautious guidance",
		"%s guided to slower growth next quarter as management highlighted macro uncertainty and FX headwinds.",
		"neutral",
	},
	{
		"%s faces regulatory scrutiny",
		"Regulators opened a probe into %s's recent acquisition strategy, raising the risk of delays to future deals.",
		"negative",
	},
}

// Report is one financial report as written to reports.json.
type Report struct {
	Company    string `json:"company"`
	Period     string `json:"period"`
	Revenue    string `json:"revenue"`
	NetIncome  string `json:"net_income"`
	Highlights string `json:"highlights"`
}

var extraReports = []Report{
	{
		Company:    "Atlas Industrials",
		Period:     "FY 2023",
		Revenue:    "$22.1B",
		NetIncome:  "$1.9B",
		Highlights: "Backlog reached a record high; pricing actions offset input cost inflation and preserved margins.",
	},
	{
		Company:    "Vertex Software",
		Period:     "Q3 2024",
		Revenue:    "$2.4B",
		NetIncome:  "$410M",
		Highlights: "Cloud ARR grew 32% YoY; net dollar retention remained above 120% despite slower seat expansion.",
	},
	{
		Company:    "Harbor Real Estate Trust",
		Period:     "Q3 2024",
		Revenue:    "$980M",
		NetIncome:  "$210M",
		Highlights: "Occupancy in logistics assets rose to 97%; office exposure reduced to 18% of portfolio NOI.",
	},
}

var (
	stocksHeader = []string{"symbol", "date", "open", "high", "low", "close", "volume"}
	newsHeader   = []string{"date", "headline", "body", "sentiment"}
	seriesStart  = time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)
)

// Files are the targets of a seed run.
type Files struct {
	News    string
	Stocks  string
	Reports string
}

// Result counts what a seed run appended.
type Result struct {
	StockRows int
	NewsRows  int
	Reports   int
}

// Generator appends synthetic rows. The same seed produces the same rows.
type Generator struct {
	rng *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate appends stocks, news and reports to files, keeping existing rows.
func (g *Generator) Generate(files Files) (*Result, error) {
	stocks := g.StockRows(DefaultStocks, seriesStart, TradingDays)
	if err := appendCSV(files.Stocks, stocksHeader, stocks); err != nil {
		return nil, fmt.Errorf("failed to seed stocks: %w", err)
	}

	news := NewsRows(DefaultCompanies)
	if err := appendCSV(files.News, newsHeader, news); err != nil {
		return nil, fmt.Errorf("failed to seed news: %w", err)
	}

	if err := appendReports(files.Reports, extraReports); err != nil {
		return nil, fmt.Errorf("failed to seed reports: %w", err)
	}

	return &Result{StockRows: len(stocks), NewsRows: len(news), Reports: len(extraReports)}, nil
}

// StockRows generates a random-walk OHLCV series of days weekday candles per
// stock, starting at start.
func (g *Generator) StockRows(stocks []Stock, start time.Time, days int) [][]string {
	var rows [][]string
	for _, s := range stocks {
		price := s.StartPrice
		current := start
		for n := 0; n < days; current = current.AddDate(0, 0, 1) {
			if wd := current.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}

			open := price + g.uniform(-1.5, 1.5)
			high := open + g.uniform(0.5, 4.0)
			low := open - g.uniform(0.5, 4.0)
			closeP := g.uniform(low, high)
			volume := 18_000_000 + g.rng.Int63n(72_000_001)

			rows = append(rows, []string{
				s.Symbol,
				current.Format("2006-01-02"),
				money(open),
				money(high),
				money(low),
				money(closeP),
				strconv.FormatInt(volume, 10),
			})
			price = closeP
			n++
		}
	}
	return rows
}

// NewsRows renders every template for every company. Days run from the 1st
// and stop advancing at the 28th.
func NewsRows(companies []string) [][]string {
	rows := make([][]string, 0, len(companies)*len(newsTemplates))
	day := 1
	for _, company := range companies {
		for _, tpl := range newsTemplates {
			rows = append(rows, []string{
				fmt.Sprintf("2024-10-%02d", day),
				fmt.Sprintf(tpl.headline, company),
				fmt.Sprintf(tpl.body, company),
				tpl.sentiment,
			})
			day = min(day+1, 28)
		}
	}
	return rows
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func money(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64)
}

// appendCSV rewrites path as its existing rows (blank lines dropped) plus rows.
// A missing file starts from header.
func appendCSV(path string, header []string, rows [][]string) error {
	existing, err := readCSV(path)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		header = existing[0]
		existing = existing[1:]
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range existing {
		if isBlank(row) {
			continue
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}

	return writeFile(path, buf.Bytes())
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}

func isBlank(row []string) bool {
	for _, field := range row {
		if field != "" {
			return false
		}
	}
	return true
}

// appendReports keeps existing report objects verbatim and appends extra.
func appendReports(path string, extra []Report) error {
	var existing []json.RawMessage
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return err
	case len(bytes.TrimSpace(data)) > 0:
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	all := make([]any, 0, len(existing)+len(extra))
	for _, raw := range existing {
		all = append(all, raw)
	}
	for _, r := range extra {
		all = append(all, r)
	}

	out, err := json.MarshalIndent(all, "", "    ")
	if err != nil {
		return err
	}
	return writeFile(path, append(out, '\n'))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0644)
}
