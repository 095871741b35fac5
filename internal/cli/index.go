package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var indexForce bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the embedding index",
	Long: `Load the source files, embed every document and persist the index in the
cache directory. When the source files are unchanged the cached index is reused.

Examples:
  finrag index            # Reuse the cache when fresh
  finrag index --force    # Re-embed everything`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "ignore the cached index and rebuild")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	fmt.Printf("Embedding with %s (%s)\n", cfg.Embedding.Provider, cfg.Embedding.Model)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	progress := func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(done)

		if done > 0 && done < total {
			rate := float64(done) / time.Since(startTime).Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	start := time.Now()
	p, err := buildPipeline(cmd.Context(), indexForce, progress)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Documents:   %d\n", p.DocumentCount())
	if p.CacheHit() {
		fmt.Printf("  Cache:       fresh (sources unchanged)\n")
	} else {
		fmt.Printf("  Cache:       rebuilt\n")
	}
	if p.BuildID() != "" {
		fmt.Printf("  Build:       %s\n", p.BuildID())
	} else {
		fmt.Printf("  Build:       not persisted (see warnings)\n")
	}
	fmt.Printf("  Duration:    %s\n", formatDuration(time.Since(start)))
	fmt.Printf("\nIndex stored in: %s\n", cfg.CacheDir(GetRootDir()))
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
