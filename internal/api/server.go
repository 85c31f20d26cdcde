// Package api exposes the fusion pipeline over HTTP: synchronous cycle
// analysis plus read access to stored results.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/predictfunk/internal/pipeline"
)

// Analyzer runs one analysis cycle. Satisfied by *pipeline.Pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, in pipeline.CycleInput) *pipeline.CycleResult
}

// ResultReader reads stored cycle results. Satisfied by *store.ResultStore.
type ResultReader interface {
	Latest(ctx context.Context, marketID string) (*pipeline.CycleResult, error)
	History(ctx context.Context, marketID string, limit int) ([]*pipeline.CycleResult, error)
}

// Config configures the API server.
type Config struct {
	Host string
	Port int
}

// Server is the HTTP API server.
type Server struct {
	analyzer Analyzer
	results  ResultReader // Optional
	srv      *http.Server
}

// NewServer creates the API server and registers routes.
func NewServer(cfg Config, analyzer Analyzer, results ResultReader) *Server {
	s := &Server{analyzer: analyzer, results: results}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/health", s.handleHealth)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/analyze", s.handleAnalyze)
		v1.GET("/results/:market", s.handleLatest)
		v1.GET("/results/:market/history", s.handleHistory)
	}

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.srv.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("API server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAnalyze runs one cycle synchronously on the posted input.
func (s *Server) handleAnalyze(c *gin.Context) {
	var input pipeline.CycleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid cycle input: %v", err)})
		return
	}
	if input.Market.MarketID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "market.market_id is required"})
		return
	}

	result := s.analyzer.Analyze(c.Request.Context(), input)
	if result.Failed() {
		// Typed failures are part of the contract, not server errors.
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLatest(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "result store not configured"})
		return
	}
	result, err := s.results.Latest(c.Request.Context(), c.Param("market"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no result for market"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "result store not configured"})
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
	}
	results, err := s.results.History(c.Request.Context(), c.Param("market"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"market": c.Param("market"), "results": results})
}

// requestLogger logs one line per request with latency and status.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}
