package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"finrag/internal/domain"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve documents similar to a query",
	Long: `Embed the query and return the most similar documents, dropping results that
score far below the best match.

Examples:
  finrag query -q "Tesla delivery guidance"
  finrag query -q "bank net income" --top-k 8 --json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(queryText) == "" {
		return fmt.Errorf("query must not be empty")
	}

	p, err := buildPipeline(cmd.Context(), false, nil)
	if err != nil {
		return err
	}

	results, err := p.Retrieve(cmd.Context(), queryText, queryTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		if results == nil {
			results = []domain.Result{}
		}
		output, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		base := r.Metadata.Base()
		fmt.Printf("--- [%d] %s (%s, score: %.3f) ---\n", i+1, base.ID, base.Source, r.Score)
		fmt.Println(truncate(base.Snippet, snippetPreviewRunes))
		fmt.Println()
	}
	return nil
}

const snippetPreviewRunes = 500

// truncate cuts text to at most limit runes, marking the cut with "...".
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
