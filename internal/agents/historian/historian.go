// Package historian answers questions about the history of AI directly.
package historian

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
)

const systemPrompt = "Du bist ein freundlicher Support-Agent. Beantworte Fragen zur Geschichte der künstlichen Intelligenz " +
	"in einfacher, gut verständlicher Sprache auf Deutsch. Verwende höchstens zwei kurze Absätze."

// ApologyText is returned when no answer could be produced.
const ApologyText = "Entschuldigung, die Frage zur Geschichte der KI konnte gerade nicht beantwortet werden. " +
	"Dein Ticket wurde trotzdem aufgenommen."

// Historian implements ports.Historian.
type Historian struct {
	completer ports.Completer
	timeout   time.Duration
	logger    *slog.Logger
}

var _ ports.Historian = (*Historian)(nil)

// New creates a historian. A zero timeout means the caller's deadline applies.
func New(completer ports.Completer, timeout time.Duration, logger *slog.Logger) *Historian {
	if logger == nil {
		logger = slog.Default()
	}
	return &Historian{completer: completer, timeout: timeout, logger: logger}
}

// Answer returns the answer text, or ApologyText and degraded=true.
func (h *Historian) Answer(ctx context.Context, request string) (string, bool) {
	if h.completer == nil || strings.TrimSpace(request) == "" {
		return ApologyText, true
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	out, err := h.completer.Complete(ctx, &ports.CompletionRequest{
		Task:   "historian",
		System: systemPrompt,
		User:   request,
	})
	if err != nil {
		h.logger.Warn("historian degraded", slog.String("error", err.Error()))
		return ApologyText, true
	}

	answer := strings.TrimSpace(out)
	if answer == "" {
		return ApologyText, true
	}
	return answer, false
}
