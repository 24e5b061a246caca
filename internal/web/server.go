// Package web provides the HTTP API for the image editor: uploading,
// applying operations, undo and reset, and serving previews and
// downloads. Sessions are tracked with a cookie set by
// SessionMiddleware.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Esmaill1/image-lab/internal/artifact"
	"github.com/Esmaill1/image-lab/internal/config"
	"github.com/Esmaill1/image-lab/internal/ops"
	"github.com/Esmaill1/image-lab/internal/session"
	"github.com/Esmaill1/image-lab/internal/transform"
)

const (
	// ReadTimeout is the maximum duration for reading the entire request.
	// Uploads can be multi-megabyte, so this is longer than usual.
	ReadTimeout = 60 * time.Second

	// WriteTimeout is the maximum duration before timing out response writes.
	WriteTimeout = 60 * time.Second

	// IdleTimeout is the maximum time to wait for the next request.
	IdleTimeout = 60 * time.Second

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 30 * time.Second

	// MaxFormBodySize is the maximum size for non-upload POST bodies.
	MaxFormBodySize = 1 * 1024 * 1024
)

// transformer applies pixel operations to stored images. It is the
// seam tests use to substitute a fake engine.
type transformer interface {
	Transform(srcPath, dstPath string, op ops.Operation) error
	Preview(srcPath, dstPath string, maxEdge int) error
}

// Server is the HTTP server for the image editor.
type Server struct {
	addr   string
	server *http.Server

	engine   transformer
	store    artifact.Store
	sessions *session.Manager
	limiter  *rateLimiter
	log      *logrus.Logger

	maxUpload  int64
	previewMax int
}

// NewServer creates a Server backed by the OpenCV transform engine.
func NewServer(cfg *config.Config, store artifact.Store, sessions *session.Manager, log *logrus.Logger) *Server {
	return NewServerWithDeps(cfg, nil, store, sessions, log)
}

// NewServerWithDeps creates a Server with an injected transform engine.
// A nil engine falls back to the default OpenCV-backed one.
func NewServerWithDeps(cfg *config.Config, engine transformer, store artifact.Store, sessions *session.Manager, log *logrus.Logger) *Server {
	if engine == nil {
		engine = transform.New(log)
	}

	s := &Server{
		addr:       cfg.Addr(),
		engine:     engine,
		store:      store,
		sessions:   sessions,
		limiter:    newRateLimiter(),
		log:        log,
		maxUpload:  cfg.MaxUploadBytes(),
		previewMax: cfg.PreviewMax,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      SessionMiddleware(mux),
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
		IdleTimeout:  IdleTimeout,
	}

	return s
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Session lifecycle
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("POST /undo", s.handleUndo)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("POST /clear", s.handleClear)

	// Session state
	mux.HandleFunc("GET /state", s.handleState)

	// Artifact serving
	mux.HandleFunc("GET /previews/{name}", s.handlePreview)
	mux.HandleFunc("GET /download/{name}", s.handleDownload)

	// Health check
	mux.HandleFunc("GET /ready", s.handleReady)
}

// ListenAndServe starts the HTTP server and blocks until ctx is
// cancelled or the server fails. Shutdown is graceful: in-flight
// requests get ShutdownTimeout to complete.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.limiter.startCleanup(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.addr).Info("web server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		s.log.Info("web server stopped")
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}
