// Package httpapi is the thin caller-facing HTTP surface over the three core
// services. Routing and token verification live here; rate limiting and CORS
// are expected in front of this process.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mpetrovs/cloudvault/internal/logging"
	sc "github.com/mpetrovs/cloudvault/internal/server/config"
	"github.com/mpetrovs/cloudvault/internal/server/services"
)

type Server struct {
	config    *sc.Config
	logger    logging.Logger
	hierarchy *services.HierarchyService
	uploads   *services.UploadService
	archive   *services.ArchiveService
	started   time.Time
}

func NewServer(cfg *sc.Config, l logging.Logger, h *services.HierarchyService, u *services.UploadService, a *services.ArchiveService) *Server {
	return &Server{
		config:    cfg,
		logger:    l.With("module", "httpapi"),
		hierarchy: h,
		uploads:   u,
		archive:   a,
		started:   time.Now(),
	}
}

// Router assembles the route table. Mirrors the service surface:
// files metadata/navigation/download plus the upload lifecycle.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/files", s.handleList)
		r.Get("/files/{id}", s.handleGet)
		r.Delete("/files/{id}", s.handleDelete)
		r.Patch("/files/{id}/rename", s.handleRename)
		r.Patch("/files/{id}/move", s.handleMove)
		r.Get("/files/{id}/download", s.handleDownload)

		r.Post("/uploads/initiate", s.handleInitiate)
		r.Post("/uploads/{id}/complete", s.handleComplete)
		r.Post("/uploads/{id}/abort", s.handleAbort)
		r.Get("/uploads/{id}/status", s.handleStatus)
		r.Post("/uploads/{id}/regenerate", s.handleRegenerate)
	})

	return r
}

// Run serves the API until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.EndpointAddr,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "starting HTTP server", "address", s.config.EndpointAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"message": "CloudVault API is working..."})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.started)
	render.JSON(w, r, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    fmt.Sprintf("%dm %ds", int(uptime.Minutes()), int(uptime.Seconds())%60),
		"env":       s.config.Env,
	})
}
