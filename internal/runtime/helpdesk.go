// Package runtime assembles the workflow engine and its collaborators from
// configuration and manages the HTTP server lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tjfontaine/helpdesk-router/internal/agents/classification"
	"github.com/tjfontaine/helpdesk-router/internal/agents/historian"
	"github.com/tjfontaine/helpdesk-router/internal/agents/identity"
	"github.com/tjfontaine/helpdesk-router/internal/auth"
	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
	"github.com/tjfontaine/helpdesk-router/internal/dispatch"
	"github.com/tjfontaine/helpdesk-router/internal/pipeline"
	"github.com/tjfontaine/helpdesk-router/internal/pkg/config"
	"github.com/tjfontaine/helpdesk-router/internal/reasoning"
	"github.com/tjfontaine/helpdesk-router/internal/server"
	"github.com/tjfontaine/helpdesk-router/internal/storage/memory"
	"github.com/tjfontaine/helpdesk-router/internal/storage/sqlite"
	"github.com/tjfontaine/helpdesk-router/internal/workflow"
)

// Helpdesk owns the engine, its state store and the HTTP server.
type Helpdesk struct {
	cfg       *config.Config
	store     ports.StateStore
	completer ports.Completer
	poster    ports.TicketPoster
	engine    *workflow.Engine
	logger    *slog.Logger

	server   *server.Server
	listener net.Listener
	mu       sync.Mutex
}

// New builds a Helpdesk. A configuration is required; every other
// collaborator defaults to what the configuration describes.
func New(opts ...Option) (*Helpdesk, error) {
	h := &Helpdesk{logger: slog.Default()}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if h.cfg == nil {
		return nil, fmt.Errorf("configuration required (use WithConfig or WithFileConfig)")
	}

	if h.store == nil {
		store, err := openStore(h.cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		h.store = store
	}

	if h.completer == nil {
		h.completer = reasoning.NewFromConfig(h.cfg.Reasoning, nil, h.logger)
	}

	if h.poster == nil {
		h.poster = dispatch.NewHTTPPoster(dispatch.PosterConfig{
			URL:                  h.cfg.Dispatch.URL,
			Timeout:              config.MustDuration(h.cfg.Dispatch.Timeout, dispatch.DefaultTimeout),
			Headers:              h.cfg.Dispatch.Headers,
			BlockPrivateNetworks: h.cfg.Dispatch.BlockPrivateNetworks,
		})
	}

	wf := h.cfg.Workflow
	executor, err := pipeline.NewDefaultExecutor(
		historian.New(h.completer, config.MustDuration(wf.HistorianTimeout, 30*time.Second), h.logger),
		h.poster,
		h.logger,
	)
	if err != nil {
		h.store.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	h.engine = workflow.New(h.store,
		identity.NewExtractor(h.completer, config.MustDuration(wf.ExtractTimeout, 10*time.Second), h.logger),
		classification.New(h.completer, config.MustDuration(wf.ClassifyTimeout, 15*time.Second), h.logger),
		executor,
		workflow.WithLogger(h.logger),
		workflow.WithMaxMessageChars(wf.MaxMessageChars),
		workflow.WithForceSimulate(wf.ForceSimulate),
	)

	return h, nil
}

func openStore(cfg config.StorageConfig) (ports.StateStore, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.New(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

// Engine returns the workflow engine for in-process use.
func (h *Helpdesk) Engine() *workflow.Engine {
	return h.engine
}

// Config returns the configuration the Helpdesk was built from.
func (h *Helpdesk) Config() *config.Config {
	return h.cfg
}

// Start begins serving HTTP on the configured port. It returns once the
// listener is bound.
func (h *Helpdesk) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server != nil {
		return fmt.Errorf("already started")
	}

	h.server = server.New(server.Options{
		Port:                    h.cfg.Server.Port,
		RequestTimeout:          config.MustDuration(h.cfg.Server.RequestTimeout, 90*time.Second),
		Authenticator:           auth.NewAuthenticator(h.cfg.Server.APIKeys),
		SimulateDispatchDefault: h.cfg.Workflow.SimulateDispatchDefault,
		ServiceName:             h.cfg.Telemetry.ServiceName,
	}, h.engine, h.logger)

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", fmt.Sprintf(":%d", h.cfg.Server.Port))
	if err != nil {
		h.server = nil
		return fmt.Errorf("listen: %w", err)
	}
	h.listener = ln

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("server failed", slog.String("error", err.Error()))
		}
	}()

	h.logger.Info("helpdesk started",
		slog.String("addr", ln.Addr().String()),
		slog.String("storage", h.cfg.Storage.Type),
		slog.Bool("reasoning", h.cfg.Reasoning.BaseURL != "" || h.cfg.Reasoning.APIKey != ""),
		slog.Bool("dispatch_configured", h.cfg.Dispatch.URL != ""))
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (h *Helpdesk) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Shutdown stops the server, waiting for in-flight turns, and closes storage.
func (h *Helpdesk) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Info("shutting down helpdesk")

	if h.server != nil {
		if err := h.server.Shutdown(ctx); err != nil {
			h.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
		h.server = nil
	}

	if err := h.store.Close(); err != nil {
		h.logger.Error("failed to close storage", slog.String("error", err.Error()))
		return err
	}

	h.logger.Info("helpdesk shutdown complete")
	return nil
}
