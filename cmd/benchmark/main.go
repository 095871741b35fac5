package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"finrag/config"
	"finrag/internal/logging"
	"finrag/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	rootDir := flag.String("dir", ".", "Directory holding finrag.yaml and the data files")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir . -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Index readiness (cache hit, document count, build time)")
		fmt.Println("  2. Query latency")
		fmt.Println("  3. Similarity of the returned documents")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*rootDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.Logging.Level = "warn"
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	buildStart := time.Now()
	p, err := usecase.NewPipeline(ctx, usecase.Deps{Config: cfg, Root: *rootDir, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline not available: %v\n", err)
		os.Exit(1)
	}
	buildTime := time.Since(buildStart)

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Documents indexed: %d\n", p.DocumentCount())
	fmt.Printf("Model: %s (%s)\n", p.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Index from cache: %v (ready in %s)\n", p.CacheHit(), buildTime.Round(time.Millisecond))
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	queryStart := time.Now()
	results, err := p.Retrieve(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Retrieve error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Retrieved in %s\n\n", time.Since(queryStart).Round(time.Microsecond))

	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	fmt.Printf("Top %d matches after relevance filtering:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		base := r.Metadata.Base()

		preview := base.Snippet
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}
		preview = strings.ReplaceAll(preview, "\n", " ")

		similarity := r.Score
		totalScore += similarity

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s (%s)\n", i+1, rating, similarity, base.ID, base.Source)
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - retrieval working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - consider a stronger embedding model")
	}
}
