package source

import (
	"fmt"
	"sort"
	"strconv"

	"finrag/internal/domain"
)

// MarketOverview summarizes the latest close of every symbol in the stocks file.
// Rows are ordered by date within each symbol; symbols come back sorted.
func MarketOverview(stocksPath string) ([]domain.MarketSnapshot, error) {
	if !exists(stocksPath) {
		return []domain.MarketSnapshot{}, nil
	}

	t, err := readTable(stocksPath)
	if err != nil {
		return nil, err
	}

	groups := groupBySymbol(t)
	symbols := make([]string, 0, len(groups))
	for symbol := range groups {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	snapshots := make([]domain.MarketSnapshot, 0, len(symbols))
	for _, symbol := range symbols {
		rows := groups[symbol]
		sort.SliceStable(rows, func(i, j int) bool {
			return t.get(rows[i], "date") < t.get(rows[j], "date")
		})

		last := rows[len(rows)-1]
		lastClose, err := strconv.ParseFloat(t.get(last, "close"), 64)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: invalid close %q: %w", symbol, t.get(last, "close"), err)
		}

		snap := domain.MarketSnapshot{
			Symbol:    symbol,
			Date:      t.get(last, "date"),
			LastClose: lastClose,
		}

		if len(rows) > 1 {
			prev := rows[len(rows)-2]
			prevClose, err := strconv.ParseFloat(t.get(prev, "close"), 64)
			if err != nil {
				return nil, fmt.Errorf("symbol %s: invalid close %q: %w", symbol, t.get(prev, "close"), err)
			}
			snap.PrevClose = &prevClose
			if prevClose != 0 {
				pct := (lastClose - prevClose) / prevClose * 100
				snap.PctChange = &pct
			}
		}

		snapshots = append(snapshots, snap)
	}

	return snapshots, nil
}
