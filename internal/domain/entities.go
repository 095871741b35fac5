package domain

import (
	"encoding/json"
	"fmt"
)

// Source identifies which input collection a document came from.
type Source string

const (
	SourceNews    Source = "news"
	SourceStocks  Source = "stocks"
	SourceReports Source = "reports"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceNews, SourceStocks, SourceReports:
		return true
	}
	return false
}

// Document is a unit of retrievable text. Immutable once built.
type Document struct {
	ID     string
	Source Source
	Text   string
	Meta   Metadata
}

// Common carries the fields every metadata variant exposes.
type Common struct {
	ID      string `json:"id"`
	Source  Source `json:"source"`
	Snippet string `json:"snippet"`
}

// Base returns the shared fields; promoted into every metadata variant.
func (c Common) Base() Common { return c }

// Metadata is the per-document payload returned to callers.
// The concrete type is one of NewsMeta, StockMeta or ReportMeta.
type Metadata interface {
	Base() Common
	isMetadata()
}

type NewsMeta struct {
	Common
	Headline  string `json:"headline"`
	Date      string `json:"date"`
	Sentiment string `json:"sentiment"`
}

type StockMeta struct {
	Common
	Symbol  string `json:"symbol"`
	Entries int    `json:"entries"`
}

type ReportMeta struct {
	Common
	Company string `json:"company"`
	Period  string `json:"period"`
}

func (NewsMeta) isMetadata()   {}
func (StockMeta) isMetadata()  {}
func (ReportMeta) isMetadata() {}

// DecodeMetadata decodes one flat metadata object, dispatching on its source field.
func DecodeMetadata(raw []byte) (Metadata, error) {
	var probe struct {
		Source Source `json:"source"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if !probe.Source.Valid() {
		return nil, fmt.Errorf("unknown metadata source %q", probe.Source)
	}

	var m Metadata
	var err error
	switch probe.Source {
	case SourceNews:
		var news NewsMeta
		err = json.Unmarshal(raw, &news)
		m = news
	case SourceStocks:
		var stock StockMeta
		err = json.Unmarshal(raw, &stock)
		m = stock
	case SourceReports:
		var report ReportMeta
		err = json.Unmarshal(raw, &report)
		m = report
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Result is a retrieved document's metadata plus its similarity score.
type Result struct {
	Metadata Metadata
	Score    float64
}

// MarshalJSON flattens the metadata fields and adds "score".
func (r Result) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(r.Metadata)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]any, 1)
	}
	fields["score"] = r.Score
	return json.Marshal(fields)
}

// MarketSnapshot summarizes the latest candle of one symbol.
type MarketSnapshot struct {
	Symbol    string   `json:"symbol"`
	Date      string   `json:"date"`
	LastClose float64  `json:"last_close"`
	PrevClose *float64 `json:"prev_close"`
	PctChange *float64 `json:"pct_change"`
}
