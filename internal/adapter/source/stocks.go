package source

import (
	"fmt"
	"sort"
	"strings"

	"finrag/internal/domain"
)

// recentCandles is how many of the latest rows per symbol go into its document.
const recentCandles = 5

// loadStocks builds one document per symbol from its most recent rows.
// Symbols are emitted in sorted order; rows keep their file order.
func loadStocks(path string) ([]domain.Document, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if len(t.rows) > 0 && !t.has("symbol") {
		return nil, fmt.Errorf("missing symbol column")
	}

	groups := groupBySymbol(t)
	symbols := make([]string, 0, len(groups))
	for symbol := range groups {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	docs := make([]domain.Document, 0, len(symbols))
	for _, symbol := range symbols {
		rows := groups[symbol]
		if len(rows) > recentCandles {
			rows = rows[len(rows)-recentCandles:]
		}

		lines := make([]string, len(rows))
		for i, row := range rows {
			lines[i] = fmt.Sprintf("%s: open %s, high %s, low %s, close %s, volume %s",
				t.get(row, "date"), t.get(row, "open"), t.get(row, "high"),
				t.get(row, "low"), t.get(row, "close"), t.get(row, "volume"))
		}

		text := fmt.Sprintf("Stock performance for %s. Recent candles:\n%s", symbol, strings.Join(lines, "\n"))
		id := "stock-" + symbol

		docs = append(docs, domain.Document{
			ID:     id,
			Source: domain.SourceStocks,
			Text:   text,
			Meta: domain.StockMeta{
				Common:  domain.Common{ID: id, Source: domain.SourceStocks, Snippet: text},
				Symbol:  symbol,
				Entries: len(rows),
			},
		})
	}
	return docs, nil
}

func groupBySymbol(t *table) map[string][][]string {
	groups := make(map[string][][]string)
	for _, row := range t.rows {
		symbol := t.get(row, "symbol")
		if symbol == "" {
			continue
		}
		groups[symbol] = append(groups[symbol], row)
	}
	return groups
}
