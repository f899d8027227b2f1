package runtime

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
	"github.com/tjfontaine/helpdesk-router/internal/pkg/config"
)

// Option is a functional option for configuring a Helpdesk.
type Option func(*Helpdesk) error

// WithFileConfig loads configuration from path plus HELPDESK_ environment overrides.
func WithFileConfig(path string) Option {
	return func(h *Helpdesk) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		h.cfg = cfg
		return nil
	}
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(h *Helpdesk) error {
		if cfg == nil {
			return fmt.Errorf("nil config")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		h.cfg = cfg
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Helpdesk) error {
		if logger != nil {
			h.logger = logger
		}
		return nil
	}
}

// WithStore overrides the configured state store.
func WithStore(store ports.StateStore) Option {
	return func(h *Helpdesk) error {
		h.store = store
		return nil
	}
}

// WithCompleter overrides the configured reasoning service.
func WithCompleter(c ports.Completer) Option {
	return func(h *Helpdesk) error {
		h.completer = c
		return nil
	}
}

// WithPoster overrides the configured ticket endpoint.
func WithPoster(p ports.TicketPoster) Option {
	return func(h *Helpdesk) error {
		h.poster = p
		return nil
	}
}
