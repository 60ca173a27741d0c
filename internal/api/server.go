package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/roach88/moneymap/internal/metrics"
	"github.com/roach88/moneymap/internal/workspace"
)

// Server is the HTTP API server.
type Server struct {
	router  *gin.Engine
	server  *http.Server
	manager *workspace.Manager
	metrics *metrics.Collector
	logger  *zap.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Port    int
	Manager *workspace.Manager
	Metrics *metrics.Collector

	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewServer creates a server and registers its routes.
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(requestMetrics(cfg.Metrics))

	s := &Server{
		router:  router,
		manager: cfg.Manager,
		metrics: cfg.Metrics,
		logger:  logger,
	}
	s.setupRoutes(gatherer)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	{
		h := v1.Group("/households/:household")
		h.GET("/graph", s.handleGetGraph)
		h.PUT("/graph", s.handlePublishGraph)
		h.POST("/change-requests", s.handleChangeRequest)
		h.POST("/sandbox/reset", s.handleResetSandbox)
		h.POST("/sandbox/apply", s.handleApplySandbox)
		h.GET("/diffs", s.handleDiffs)
		h.GET("/audit", s.handleAudit)
		h.DELETE("/workspaces/:variant", s.handleDeleteWorkspace)
		h.DELETE("", s.handleDeleteHousehold)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
