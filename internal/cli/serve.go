package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finrag/internal/adapter/httpapi"
	"finrag/internal/adapter/metrics"
	"finrag/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the retrieval API over HTTP",
	Long: `Start the HTTP server and build the index in the background. Until the index
is ready, /api/v1/retrieve answers 503 and /health reports "initializing".

Endpoints:
  GET  /health
  POST /api/v1/retrieve   {"query": "...", "top_k": 4}
  GET  /market_overview
  GET  /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	log := GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	warmup := httpapi.NewWarmup()
	_, stocks, _ := cfg.SourcePaths(GetRootDir())

	srv, err := httpapi.NewServer(warmup, m, log, &httpapi.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		StocksPath:   stocks,
		Model:        cfg.Embedding.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		p, err := usecase.NewPipeline(gctx, usecase.Deps{
			Config:  cfg,
			Root:    GetRootDir(),
			Metrics: m,
			Logger:  log,
		})
		if err != nil {
			if gctx.Err() != nil {
				return nil
			}
			return err
		}
		warmup.Publish(p)
		log.Info("retrieval pipeline ready",
			zap.Int("documents", p.DocumentCount()),
			zap.Bool("cache_hit", p.CacheHit()),
			zap.String("model", p.ModelName()),
		)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
