package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"finrag/internal/domain"
)

// field is a report value that may be written as a JSON string or number.
// Numbers keep their literal text.
type field string

func (f *field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = field(s)
		return nil
	}
	*f = field(data)
	return nil
}

type reportRecord struct {
	Company    field `json:"company"`
	Period     field `json:"period"`
	Revenue    field `json:"revenue"`
	NetIncome  field `json:"net_income"`
	Highlights field `json:"highlights"`
}

// loadReports builds one document per report; ids follow the array position.
func loadReports(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []reportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse reports: %w", err)
	}

	docs := make([]domain.Document, 0, len(records))
	for i, r := range records {
		text := fmt.Sprintf("Company: %s, Period: %s.\nRevenue: %s, Net Income: %s.\nHighlights: %s.",
			r.Company, r.Period, r.Revenue, r.NetIncome, r.Highlights)
		id := fmt.Sprintf("report-%d", i)

		docs = append(docs, domain.Document{
			ID:     id,
			Source: domain.SourceReports,
			Text:   text,
			Meta: domain.ReportMeta{
				Common:  domain.Common{ID: id, Source: domain.SourceReports, Snippet: text},
				Company: string(r.Company),
				Period:  string(r.Period),
			},
		})
	}
	return docs, nil
}
