package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"autobump/internal/core"
	"autobump/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server holds the HTTP server state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	store      *store.Store
	bumper     *core.Bumper
	runner     *core.Runner
	logger     *slog.Logger
	authToken  string
}

// NewServer constructs the HTTP API server.
func NewServer(addr, authToken string, store *store.Store, bumper *core.Bumper, runner *core.Runner, logger *slog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		store:     store,
		bumper:    bumper,
		runner:    runner,
		logger:    logger,
		authToken: authToken,
	}
	s.registerRoutes()

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.httpServer = httpServer
	return s, nil
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.router.Route("/v1", func(r chi.Router) {
		// Apply authentication to all API endpoints
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Route("/bump", func(r chi.Router) {
			r.Post("/run", s.handleRunAutoBump)
			r.Post("/batch", s.handleRunBatch)
			r.Post("/preview", s.handlePreviewSlot)
			r.Get("/history", s.handleBumpHistory)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)

			r.Route("/{taskID}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Delete("/", s.handleDeleteTask)
				r.Post("/bump", s.handleManualBump)
			})
		})

		r.Route("/commitments", func(r chi.Router) {
			r.Get("/", s.handleListCommitments)
			r.Post("/", s.handleCreateCommitment)
			r.Delete("/{commitmentID}", s.handleDeleteCommitment)
		})

		r.Route("/preferences/{userID}", func(r chi.Router) {
			r.Get("/", s.handleGetPreferences)
			r.Put("/", s.handlePutPreferences)
		})
	})
}
