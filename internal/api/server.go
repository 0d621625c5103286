// Package api exposes the build system to editors over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/texbuilder/internal/buildsystem"
	"git.home.luguber.info/inful/texbuilder/internal/eventstore"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

const requestTimeout = 30 * time.Second

// BuildController is the part of *buildsystem.BuildSystem the API drives.
type BuildController interface {
	AddQuery(q *query.Query)
	StopBuilding(notify bool)
	Active() *query.Query
	IsBuilding() bool
	Latest() []buildsystem.Event
}

// Options configure a Server.
type Options struct {
	Addr    string
	Builds  BuildController
	Params  query.BuildParams
	History eventstore.Store // nil disables /api/history
	Metrics http.Handler     // nil disables /metrics
	Hub     *EventHub        // nil creates a private hub
	Logger  *slog.Logger
}

// Server is the control API server.
type Server struct {
	Addr   string
	router *chi.Mux
	server *http.Server

	builds  BuildController
	params  query.BuildParams
	history eventstore.Store
	metrics http.Handler
	hub     *EventHub
	logger  *slog.Logger
	errors  *errors.HTTPErrorAdapter
}

// NewServer creates a new API server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Hub == nil {
		opts.Hub = NewEventHub()
	}
	s := &Server{
		Addr:    opts.Addr,
		router:  chi.NewRouter(),
		builds:  opts.Builds,
		params:  opts.Params,
		history: opts.History,
		metrics: opts.Metrics,
		hub:     opts.Hub,
		logger:  opts.Logger,
		errors:  errors.NewHTTPErrorAdapter(opts.Logger),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	// The event stream outlives the request timeout.
	s.router.Get("/api/events", s.handleEventStream)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/health", s.handleHealth)
		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics)
		}

		r.Route("/api", func(r chi.Router) {
			r.Get("/status", s.handleStatus)
			r.Get("/events/latest", s.handleLatestEvents)
			r.Post("/build", s.handleBuild)
			r.Post("/sync/forward", s.handleForwardSync)
			r.Post("/sync/backward", s.handleBackwardSync)
			r.Post("/stop", s.handleStop)
			r.Get("/history/{id}", s.handleHistory)
		})
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the event hub streamed on /api/events.
func (s *Server) Hub() *EventHub { return s.hub }

// Start serves until Shutdown. It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes open event streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// Response represents a standard API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Error writes a classified error as a failed Response.
func (s *Server) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := s.errors.StatusCodeFor(err)
	resp := s.errors.FormatErrorResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Success: false, Error: resp.Error})

	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "Request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		return
	}
	s.logger.WarnContext(r.Context(), "Request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
