package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"finrag/config"
	"finrag/internal/logging"
	"finrag/internal/usecase"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "finrag",
	Short: "Retrieval engine over financial news, stock prices and reports",
	Long: `finrag indexes a small financial corpus (news.csv, stocks.csv, reports.json)
into an embedding index and answers similarity queries over it, from the command
line or over HTTP.

The index is cached next to the data and rebuilt only when a source file changes.

Example usage:
  finrag seed                          # Add synthetic demo data
  finrag index                         # Build or refresh the index
  finrag query -q "Tesla guidance"     # Retrieve matching documents
  finrag serve                         # Serve the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./finrag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

func GetLogger() *zap.Logger {
	return logger
}

// buildPipeline constructs the engine from the loaded config.
func buildPipeline(ctx context.Context, force bool, progress usecase.ProgressFunc) (*usecase.Pipeline, error) {
	return usecase.NewPipeline(ctx, usecase.Deps{
		Config:   GetConfig(),
		Root:     GetRootDir(),
		Logger:   GetLogger(),
		Force:    force,
		Progress: progress,
	})
}
