// Package server exposes replays over HTTP: upload a dataset, receive the
// per-row status stream as NDJSON.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/machwatch/internal/dataset"
	"github.com/crimson-sun/machwatch/internal/output"
	"github.com/crimson-sun/machwatch/internal/pipeline"
)

const shutdownTimeout = 10 * time.Second

// Config holds server dependencies and limits.
type Config struct {
	Evaluator      pipeline.Evaluator
	Log            output.Output // shared log sink, never closed by the server
	LogPath        string        // file read by the log viewer endpoint
	Delay          time.Duration
	Dataset        dataset.Options
	MaxUploadBytes int64
	Tail           int // default number of lines for /logs
}

// Server is the HTTP surface.
type Server struct {
	cfg    Config
	engine *gin.Engine
	log    *slog.Logger
}

// New creates a Server and registers its routes.
func New(cfg Config) *Server {
	if cfg.Tail <= 0 {
		cfg.Tail = 20
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	s := &Server{
		cfg:    cfg,
		engine: gin.New(),
		log:    slog.Default().With("component", "server"),
	}
	s.engine.Use(gin.Recovery(), requestLogger(s.log))
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/replay", s.handleReplay)
		v1.GET("/logs", s.handleLogs)
	}
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. In-flight replays see their request context cancelled and
// stop after the current row.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		s.log.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestLogger logs one line per request once it completes.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
