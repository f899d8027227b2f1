// Package server exposes the workflow engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/helpdesk-router/internal/auth"
	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/workflow"
)

// TurnProcessor runs one conversation turn.
type TurnProcessor interface {
	Process(ctx context.Context, turn workflow.Turn) (*domain.TicketResult, error)
}

// Options configures the HTTP server.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	// Authenticator enables bearer key checks on the API routes when set.
	Authenticator *auth.Authenticator
	// SimulateDispatchDefault applies when a request omits simulate_dispatch.
	SimulateDispatchDefault bool
	ServiceName             string
}

type Server struct {
	Router *chi.Mux
	Port   int

	engine          TurnProcessor
	simulateDefault bool
	httpServer      *http.Server
	logger          *slog.Logger
}

func New(opts Options, engine TurnProcessor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "helpdesk-router"
	}

	s := &Server{
		Router:          chi.NewRouter(),
		Port:            opts.Port,
		engine:          engine,
		simulateDefault: opts.SimulateDispatchDefault,
		logger:          logger,
	}

	r := s.Router
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, opts.ServiceName)
	})

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if opts.Authenticator != nil {
			r.Use(AuthMiddleware(opts.Authenticator))
		}
		r.Post("/tickets", s.handleTicket)
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start listens on the configured port and serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve serves on an existing listener until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown stops accepting requests and waits for in-flight turns.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
