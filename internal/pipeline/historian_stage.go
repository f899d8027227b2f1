package pipeline

import (
	"context"
	"strings"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
)

// HistorianStage asks the historian for a direct answer.
type HistorianStage struct {
	historian ports.Historian
}

var _ ports.Stage = (*HistorianStage)(nil)

// NewHistorianStage wraps historian as a pipeline stage.
func NewHistorianStage(historian ports.Historian) *HistorianStage {
	return &HistorianStage{historian: historian}
}

// Name returns the stage identifier.
func (s *HistorianStage) Name() ports.StageName {
	return ports.StageHistorian
}

// Process stores the answer, or the historian's apology marked degraded.
func (s *HistorianStage) Process(ctx context.Context, tc *domain.TicketContext, _ ports.RunOptions) error {
	if tc.Category() != domain.CategoryAIHistory {
		return domain.NewInvariantError("category", "historian reached for "+string(tc.Category()))
	}

	question := strings.TrimSpace(tc.NormalizedBody)
	if question == "" {
		question = tc.OriginalRequest()
	}

	answer, degraded := s.historian.Answer(ctx, question)
	tc.HistorianAnswer = answer
	if degraded {
		tc.MarkDegraded(domain.DegradedHistorian)
	}
	return nil
}
