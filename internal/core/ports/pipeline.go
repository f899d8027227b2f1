package ports

import (
	"context"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
)

// StageName identifies a stage that runs after classification.
type StageName string

const (
	// StageHistorian answers AI history questions directly.
	StageHistorian StageName = "historian"
	// StageDispatch builds and delivers the ticket payload.
	StageDispatch StageName = "dispatch"
	// StageFormatter produces the final result text.
	StageFormatter StageName = "formatter"
)

// RunOptions carries per-turn options into stages.
type RunOptions struct {
	SimulateDispatch bool
}

// Stage processes a ticket context after classification.
type Stage interface {
	// Name returns the unique identifier for this stage.
	Name() StageName
	// Process executes the stage logic. Errors are reserved for invariant violations.
	Process(ctx context.Context, tc *domain.TicketContext, opts RunOptions) error
}
