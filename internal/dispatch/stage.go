// Package dispatch builds ticket payloads and delivers them to the ticketing endpoint.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
)

// DetailSimulated is the detail recorded for simulated deliveries.
const DetailSimulated = "simulated"

// Stage is the dispatch stage of the ticket pipeline.
type Stage struct {
	poster ports.TicketPoster
	logger *slog.Logger
}

var _ ports.Stage = (*Stage)(nil)

// NewStage creates a dispatch stage delivering through poster.
func NewStage(poster ports.TicketPoster, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{poster: poster, logger: logger}
}

// Name returns the stage identifier.
func (s *Stage) Name() ports.StageName {
	return ports.StageDispatch
}

// Process builds the payload and delivers it, or records a simulated
// delivery. A context that already carries a dispatch result is left alone.
func (s *Stage) Process(ctx context.Context, tc *domain.TicketContext, opts ports.RunOptions) error {
	if tc.Dispatch != nil {
		s.logger.Debug("dispatch already recorded, skipping", slog.String("ticket_id", tc.TicketID))
		return nil
	}

	payload, err := BuildPayload(tc)
	if err != nil {
		return err
	}

	result := &domain.DispatchResult{Attempted: true, Payload: payload}

	if opts.SimulateDispatch {
		result.Simulated = true
		result.Success = true
		result.Detail = DetailSimulated
		tc.Dispatch = result
		s.logger.Info("dispatch simulated",
			slog.String("ticket_id", tc.TicketID),
			slog.String("category", string(tc.Category())))
		return nil
	}

	if s.poster == nil {
		result.Detail = DetailNotConfigured
	} else {
		result.Success, result.Detail = s.poster.PostTicket(ctx, payload)
	}
	tc.Dispatch = result

	if !result.Success {
		tc.MarkDegraded(domain.DegradedDispatch)
		s.logger.Warn("dispatch failed",
			slog.String("ticket_id", tc.TicketID),
			slog.String("detail", result.Detail))
		return nil
	}

	s.logger.Info("dispatch delivered",
		slog.String("ticket_id", tc.TicketID),
		slog.String("category", string(tc.Category())))
	return nil
}

// BuildPayload assembles the ticket payload. Identity must be complete and
// the category set; both are guaranteed by the identity gate and classifier.
func BuildPayload(tc *domain.TicketContext) (*domain.TicketPayload, error) {
	if !tc.Identity.Complete() {
		return nil, domain.NewInvariantError("identity", "dispatch reached with incomplete identity")
	}
	if tc.Category() == "" {
		return nil, domain.NewInvariantError("category", "dispatch reached before classification")
	}

	return &domain.TicketPayload{
		Surname:   tc.Identity.Surname,
		GivenName: tc.Identity.GivenName,
		Email:     tc.Identity.Email,
		Category:  tc.Category().Label(),
		Summary:   tc.Summary,
		Request:   tc.OriginalRequest(),
		TicketID:  tc.TicketID,
	}, nil
}
