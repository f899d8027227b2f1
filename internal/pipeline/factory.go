package pipeline

import (
	"log/slog"

	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
	"github.com/tjfontaine/helpdesk-router/internal/dispatch"
)

// NewDefaultExecutor wires the historian, dispatch and formatter stages.
func NewDefaultExecutor(historian ports.Historian, poster ports.TicketPoster, logger *slog.Logger) (*Executor, error) {
	return NewExecutor(logger,
		NewHistorianStage(historian),
		dispatch.NewStage(poster, logger),
		Formatter{},
	)
}
