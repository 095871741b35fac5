package source

import (
	"fmt"

	"finrag/internal/domain"
)

// loadNews builds one document per news row; ids follow the data row index.
func loadNews(path string) ([]domain.Document, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(t.rows))
	for i, row := range t.rows {
		date := orDefault(t.get(row, "date"), "N/A")
		headline := t.get(row, "headline")
		body := t.get(row, "body")
		sentiment := orDefault(t.get(row, "sentiment"), "neutral")

		text := fmt.Sprintf("News (%s): %s. Body: %s. Reported sentiment: %s.", date, headline, body, sentiment)
		id := fmt.Sprintf("news-%d", i)

		docs = append(docs, domain.Document{
			ID:     id,
			Source: domain.SourceNews,
			Text:   text,
			Meta: domain.NewsMeta{
				Common:    domain.Common{ID: id, Source: domain.SourceNews, Snippet: text},
				Headline:  headline,
				Date:      t.get(row, "date"),
				Sentiment: sentiment,
			},
		})
	}
	return docs, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
