package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"finrag/internal/adapter/seed"
)

var seedRandom int64

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Append synthetic demo data to the source files",
	Long: `Append about 30 trading days of prices for a few large caps, templated news
items and three financial reports. Existing rows are kept. Run "finrag index"
afterwards; the changed files invalidate the cached index.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().Int64Var(&seedRandom, "seed", 0, "random seed (default from config)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	randomSeed := cfg.Seed.RandomSeed
	if cmd.Flags().Changed("seed") {
		randomSeed = seedRandom
	}

	news, stocks, reports := cfg.SourcePaths(GetRootDir())
	fmt.Printf("Seeding synthetic data under %s ...\n", cfg.Data.Dir)

	result, err := seed.NewGenerator(randomSeed).Generate(seed.Files{
		News:    news,
		Stocks:  stocks,
		Reports: reports,
	})
	if err != nil {
		return err
	}

	fmt.Printf("  Stock rows: %d\n", result.StockRows)
	fmt.Printf("  News items: %d\n", result.NewsRows)
	fmt.Printf("  Reports:    %d\n", result.Reports)
	fmt.Println("Done. Rebuild the index to pick up the new data.")
	return nil
}
