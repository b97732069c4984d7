// Package server provides the HTTP API for ruiji.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/export"
	"github.com/hyperjump/ruiji/internal/job"
	"github.com/hyperjump/ruiji/internal/storage"
	"github.com/hyperjump/ruiji/pkg/utils"
)

// WatchService follows the folder of the current job. *watcher.Watcher implements it.
type WatchService interface {
	Watch(root string, extensions []string) error
}

// Server is the HTTP server for the ruiji API.
type Server struct {
	session  *job.Session
	exporter *export.Exporter
	history  storage.RunStore // optional
	watch    WatchService     // optional
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. history and watch may be nil.
func NewServer(
	session *job.Session,
	exporter *export.Exporter,
	history storage.RunStore,
	watch WatchService,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		session:  session,
		exporter: exporter,
		history:  history,
		watch:    watch,
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	if s.config.Debug {
		r.Use(middleware.Logger)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", s.handleStartJob)
		r.Get("/progress", s.handleProgress)
		r.Get("/clusters", s.handleClusters)
		r.Get("/unclustered", s.handleUnclustered)
		r.Post("/export", s.handleExport)
		r.Get("/images/{id}", s.handleImage)
		r.Get("/failures", s.handleFailures)
		r.Get("/history", s.handleHistory)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
