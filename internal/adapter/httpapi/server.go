// Package httpapi serves the retrieval engine over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"finrag/internal/adapter/metrics"
	"finrag/internal/adapter/source"
	"finrag/internal/domain"
	"finrag/internal/usecase"
)

const (
	minQueryLen = 2
	maxQueryLen = 2000
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	StocksPath   string // source of /market_overview
	Model        string // reported by /health before the pipeline is ready
}

// Server provides HTTP endpoints for finrag.
type Server struct {
	echo    *echo.Echo
	warmup  *Warmup
	metrics *metrics.Metrics
	logger  *zap.Logger
	config  *Config

	marketOnce sync.Once
	market     []domain.MarketSnapshot
}

// NewServer creates a new HTTP server. metrics may be nil, which disables /metrics.
func NewServer(warmup *Warmup, m *metrics.Metrics, logger *zap.Logger, cfg *Config) (*Server, error) {
	if warmup == nil {
		return nil, fmt.Errorf("warmup cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:    e,
		warmup:  warmup,
		metrics: m,
		logger:  logger,
		config:  cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/market_overview", s.handleMarketOverview)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/retrieve", s.handleRetrieve)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status           string `json:"status"`
	Model            string `json:"model"`
	DocumentsIndexed int    `json:"documents_indexed"`
}

func (s *Server) handleHealth(c echo.Context) error {
	p, ok := s.warmup.Pipeline()
	if !ok {
		return c.JSON(http.StatusOK, HealthResponse{Status: "initializing", Model: s.config.Model})
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:           "ok",
		Model:            p.ModelName(),
		DocumentsIndexed: p.DocumentCount(),
	})
}

// RetrieveRequest is the request body for POST /api/v1/retrieve.
type RetrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// RetrieveResponse is the response body for POST /api/v1/retrieve.
type RetrieveResponse struct {
	Results []domain.Result `json:"results"`
}

func (s *Server) handleRetrieve(c echo.Context) error {
	var req RetrieveRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid retrieve request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	n := utf8.RuneCountInString(req.Query)
	if n < minQueryLen || n > maxQueryLen {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("query must be between %d and %d characters", minQueryLen, maxQueryLen))
	}
	if req.TopK < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "top_k must not be negative")
	}

	p, ok := s.warmup.Pipeline()
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "index is still loading")
	}

	results, err := p.Retrieve(c.Request().Context(), req.Query, req.TopK)
	if err != nil {
		if errors.Is(err, usecase.ErrRetrievalUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "retrieval service unavailable")
		}
		s.logger.Error("retrieve failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "retrieval failed")
	}

	return c.JSON(http.StatusOK, RetrieveResponse{Results: results})
}

// MarketOverviewResponse is the response body for GET /market_overview.
type MarketOverviewResponse struct {
	Symbols []domain.MarketSnapshot `json:"symbols"`
}

// handleMarketOverview computes the overview on first use and serves the
// same snapshot afterwards. Failures yield an empty list.
func (s *Server) handleMarketOverview(c echo.Context) error {
	s.marketOnce.Do(func() {
		snapshots, err := source.MarketOverview(s.config.StocksPath)
		if err != nil {
			s.logger.Warn("market overview unavailable", zap.Error(err))
			snapshots = nil
		}
		if snapshots == nil {
			snapshots = []domain.MarketSnapshot{}
		}
		s.market = snapshots
	})
	return c.JSON(http.StatusOK, MarketOverviewResponse{Symbols: s.market})
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
