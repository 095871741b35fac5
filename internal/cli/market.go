package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"finrag/internal/adapter/source"
)

var marketJSON bool

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Show the latest close per symbol",
	Args:  cobra.NoArgs,
	RunE:  runMarket,
}

func init() {
	rootCmd.AddCommand(marketCmd)
	marketCmd.Flags().BoolVar(&marketJSON, "json", false, "output as JSON")
}

func runMarket(cmd *cobra.Command, args []string) error {
	_, stocks, _ := GetConfig().SourcePaths(GetRootDir())

	snapshots, err := source.MarketOverview(stocks)
	if err != nil {
		return fmt.Errorf("failed to compute market overview: %w", err)
	}

	if marketJSON {
		output, err := json.MarshalIndent(snapshots, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if len(snapshots) == 0 {
		fmt.Println("No price data found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tDATE\tCLOSE\tPREV\tCHANGE")
	for _, s := range snapshots {
		prev, change := "-", "-"
		if s.PrevClose != nil {
			prev = fmt.Sprintf("%.2f", *s.PrevClose)
		}
		if s.PctChange != nil {
			change = fmt.Sprintf("%+.2f%%", *s.PctChange)
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n", s.Symbol, s.Date, s.LastClose, prev, change)
	}
	return w.Flush()
}
