package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
	"github.com/tjfontaine/helpdesk-router/internal/telemetry"
)

// Executor runs the routed stages for a classified TicketContext.
type Executor struct {
	stages map[ports.StageName]ports.Stage
	logger *slog.Logger
}

// NewExecutor creates an executor. Every stage named by any route must be
// provided exactly once.
func NewExecutor(logger *slog.Logger, stages ...ports.Stage) (*Executor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Executor{
		stages: make(map[ports.StageName]ports.Stage, len(stages)),
		logger: logger,
	}
	for _, s := range stages {
		if _, dup := e.stages[s.Name()]; dup {
			return nil, fmt.Errorf("stage %s registered twice", s.Name())
		}
		e.stages[s.Name()] = s
	}

	for _, category := range domain.Categories {
		for _, name := range Route(category) {
			if _, ok := e.stages[name]; !ok {
				return nil, fmt.Errorf("no stage registered for %s (route %s)", name, category)
			}
		}
	}

	return e, nil
}

// Run executes the route for tc's category in order and returns once the
// formatter has produced tc.Result.
func (e *Executor) Run(ctx context.Context, tc *domain.TicketContext, opts ports.RunOptions) error {
	category := tc.Category()
	if category == "" {
		return domain.NewInvariantError("category", "pipeline started before classification")
	}

	for _, name := range Route(category) {
		stage := e.stages[name]

		stageCtx, span := telemetry.Tracer().Start(ctx, "stage."+string(name))
		span.SetAttributes(
			attribute.String("ticket.id", tc.TicketID),
			attribute.String("ticket.category", string(category)),
		)

		start := time.Now()
		err := stage.Process(stageCtx, tc, opts)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return fmt.Errorf("pipeline stage %s error: %w", name, err)
		}
		span.End()

		e.logger.Debug("stage completed",
			slog.String("stage", string(name)),
			slog.String("ticket_id", tc.TicketID),
			slog.Duration("duration", time.Since(start)))
	}

	if tc.Result == nil {
		return domain.NewInvariantError("result", "route finished without a formatted result")
	}
	return nil
}
