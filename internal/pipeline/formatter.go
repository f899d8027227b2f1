package pipeline

import (
	"context"
	"slices"
	"strings"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
)

// User-facing messages.
const (
	MessageUnsupported    = "Leider kann dieses System bei dieser Anfrage nicht helfen."
	MessageDispatched     = "Das Ticket wurde erfolgreich an das IT-Team übergeben. Du erhältst eine Rückmeldung per E-Mail."
	MessageDispatchFailed = "Die Weiterleitung an das IT-Team ist fehlgeschlagen. Deine Anfrage wurde aufgenommen, wir melden uns so schnell wie möglich."
	MessageReceived       = "Deine Anfrage wurde aufgenommen. Wir melden uns so schnell wie möglich."

	clarificationPrefix  = "Bitte ergänzen Sie folgende Angaben, damit wir Ihr Ticket verarbeiten können: "
	clarificationExample = "Beispiel: Müller, Hans, hans@example.com"
)

// Formatter is the final stage of every route.
type Formatter struct{}

var _ ports.Stage = Formatter{}

// Name returns the stage identifier.
func (Formatter) Name() ports.StageName {
	return ports.StageFormatter
}

// Process writes the formatted result onto tc.
func (Formatter) Process(_ context.Context, tc *domain.TicketContext, _ ports.RunOptions) error {
	tc.Result = Format(tc)
	tc.Status = tc.Result.Status
	return nil
}

// Format builds the result for a classified ticket. OTHER yields
// unsupported; everything else completed.
func Format(tc *domain.TicketContext) *domain.TicketResult {
	category := tc.Category()

	result := &domain.TicketResult{
		ConversationID: tc.ConversationID,
		TicketID:       tc.TicketID,
		Classification: category.Label(),
		Category:       category,
		Summary:        tc.Summary,
		Degraded:       slices.Clone(tc.Degraded),
	}

	if category == domain.CategoryOther {
		result.Status = domain.StatusUnsupported
		result.Message = MessageUnsupported
		return result
	}

	result.Status = domain.StatusCompleted
	result.Dispatch = tc.Dispatch

	switch {
	case tc.HistorianAnswer != "" && !tc.IsDegraded(domain.DegradedHistorian):
		result.Message = tc.HistorianAnswer
		result.IsHistorianAnswer = true
	case tc.HistorianAnswer != "":
		result.Message = tc.HistorianAnswer + "\n\n" + dispatchMessage(tc.Dispatch)
	default:
		result.Message = dispatchMessage(tc.Dispatch)
	}

	return result
}

func dispatchMessage(d *domain.DispatchResult) string {
	switch {
	case d == nil || !d.Attempted:
		return MessageReceived
	case d.Success:
		return MessageDispatched
	default:
		return MessageDispatchFailed
	}
}

// Clarification asks for exactly the missing fields.
func Clarification(missing []domain.Field) string {
	labels := make([]string, 0, len(missing))
	for _, f := range missing {
		labels = append(labels, f.Label())
	}
	return clarificationPrefix + strings.Join(labels, ", ") + ". " + clarificationExample
}

// ClarificationResult is the result for a turn halted at the identity gate.
func ClarificationResult(conversationID string, status domain.Status, missing []domain.Field) *domain.TicketResult {
	return &domain.TicketResult{
		Status:         status,
		Message:        Clarification(missing),
		ConversationID: conversationID,
		MissingFields:  slices.Clone(missing),
	}
}
