// Package server exposes the session controller over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/gin-gonic/gin"
	"github.com/tunein/go-logging/v7/pkg/rootcollector"

	"github.com/RyanBlaney/audio-emotion/configs"
	"github.com/RyanBlaney/audio-emotion/internal/session"
)

// shutdownTimeout bounds graceful shutdown once the run context is cancelled
const shutdownTimeout = 10 * time.Second

// Server serves the emotion API
type Server struct {
	config     configs.ServerConfig
	metrics    bool
	minSamples int
	controller *session.Controller
	engine     *gin.Engine
	logger     logging.Logger
}

// New creates a server and registers its routes. When metrics is true every request emits a
// latency metric tagged with route and status.
func New(config *configs.Config, controller *session.Controller) *Server {
	if config.Server.Mode != "" {
		gin.SetMode(config.Server.Mode)
	}

	s := &Server{
		config:     config.Server,
		metrics:    config.Logging.Metrics,
		minSamples: config.Training.MinSamples,
		controller: controller,
		engine:     gin.New(),
		logger: logging.WithFields(logging.Fields{
			"component": "http_server",
		}),
	}
	s.engine.MaxMultipartMemory = config.Server.MaxUploadBytes
	s.engine.Use(gin.Recovery(), s.requestLogger(), s.limitBody())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)

	s.engine.POST("/analyze/audio", s.handleAnalyze)

	training := s.engine.Group("/training")
	{
		training.POST("/samples", s.handleAddSample)
		training.GET("/samples", s.handleDatasetReport)
		training.DELETE("/samples", s.handleClearSamples)
		training.POST("/train", s.handleTrain)
	}

	model := s.engine.Group("/model")
	{
		model.GET("", s.handleModelInfo)
		model.PUT("", s.handleUploadModel)
		model.GET("/artifact", s.handleDownloadModel)
	}
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", logging.Fields{"addr": s.config.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return <-errCh
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()

		s.logger.Debug("Request handled", logging.Fields{
			"method":      c.Request.Method,
			"route":       route,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
		})

		if s.metrics {
			rootcollector.Metric("emotion.http.request.ms", elapsed.Milliseconds(), []string{
				"method:" + c.Request.Method,
				"route:" + route,
				"status:" + strconv.Itoa(status),
			})
		}
	}
}

func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.config.MaxUploadBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes)
		}
		c.Next()
	}
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), s.config.RequestTimeout)
	}
	return context.WithCancel(c.Request.Context())
}
