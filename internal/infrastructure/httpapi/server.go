package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"FeedIngestor/internal/ports"
)

const (
	serviceName   = "Feed Ingestion Service"
	statsWindow   = 7 * 24 * time.Hour
	shutdownGrace = 10 * time.Second
)

// Deps wires the ports the admin API serves.
type Deps struct {
	Dispatcher ports.Dispatcher
	Tasks      ports.TaskInspector
	Reports    ports.Reports
	Sources    ports.DataSourceAdmin
	Logger     *slog.Logger
	Now        func() time.Time
}

// Server is the admin HTTP API.
type Server struct {
	deps   Deps
	engine *gin.Engine
}

// New builds the router. mode is a gin mode ("release", "debug", "test").
func New(deps Deps, mode string) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if mode != "" {
		gin.SetMode(mode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(deps.Logger))

	s := &Server{deps: deps, engine: engine}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)

	s.engine.GET("/data-sources", s.listDataSources)
	s.engine.POST("/data-sources", s.createDataSource)
	s.engine.PUT("/data-sources/:id/toggle", s.toggleDataSource)

	s.engine.GET("/ingestion-jobs", s.listJobs)
	s.engine.GET("/ingestion-jobs/:id", s.getJob)

	s.engine.POST("/ingest/perplexity", s.triggerIngest)
	s.engine.POST("/ingest/perplexity/all-users", s.triggerIngestAllUsers)

	s.engine.GET("/feed-items", s.listFeedItems)
	s.engine.GET("/stats", s.stats)
	s.engine.GET("/task/:id", s.taskStatus)
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
