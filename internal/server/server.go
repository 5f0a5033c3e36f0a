// Package server exposes a file manager over HTTP: JSON endpoints for every
// user action, a server-sent event stream of view changes, Prometheus
// metrics and a health probe.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rescale/record-files/internal/constants"
	"github.com/rescale/record-files/internal/events"
	"github.com/rescale/record-files/internal/logging"
	"github.com/rescale/record-files/internal/services"
	"github.com/rescale/record-files/internal/state"
)

// Config holds the HTTP server settings.
type Config struct {
	// Addr is the listen address; empty uses constants.DefaultServerAddr
	Addr string

	// DownloadDir receives files fetched through the download endpoint
	DownloadDir string

	// MaxUploadBytes limits a multipart upload body. 0 means no limit.
	MaxUploadBytes int64
}

// Server serves one FileManager.
type Server struct {
	fm        *state.FileManager
	bus       *events.EventBus
	uploads   *services.UploadService
	downloads *services.DownloadService
	logger    *logging.Logger
	cfg       Config

	router     chi.Router
	httpServer *http.Server
}

// New builds the router. uploads and downloads may be nil, which turns
// the matching endpoints into 503 responses.
func New(fm *state.FileManager, bus *events.EventBus, uploads *services.UploadService, downloads *services.DownloadService, logger *logging.Logger, cfg Config) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Addr == "" {
		cfg.Addr = constants.DefaultServerAddr
	}

	s := &Server{
		fm:        fm,
		bus:       bus,
		uploads:   uploads,
		downloads: downloads,
		logger:    logger,
		cfg:       cfg,
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: constants.ServerReadTimeout,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(metricsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/view", s.handleView)
		r.Get("/events", s.handleEvents)

		r.Post("/refresh", s.handleRefresh)
		r.Put("/selection", s.handleSelect)
		r.Post("/rows/{contentDocumentId}/actions/{action}", s.handleRowAction)

		r.Post("/remove/confirm", s.handleConfirmRemove)
		r.Post("/remove/cancel", s.modal((*state.FileManager).CloseRemoveModal))

		r.Post("/delete/open", s.modal((*state.FileManager).OpenDeleteModal))
		r.Post("/delete/cancel", s.modal((*state.FileManager).CloseDeleteModal))
		r.Post("/delete/confirm", s.handleConfirmDelete)

		r.Post("/upload/open", s.modal((*state.FileManager).OpenUploadModal))
		r.Post("/upload/cancel", s.modal((*state.FileManager).CloseUploadModal))
		r.Post("/upload", s.handleUpload)

		r.Post("/download", s.handleDownload)
	})
	return r
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server starting")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return <-errCh
}

// keepAliveInterval spaces comment frames on an idle event stream.
const keepAliveInterval = 15 * time.Second
