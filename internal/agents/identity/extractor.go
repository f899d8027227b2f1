// Package identity extracts requester identity fields from free text.
package identity

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
	"github.com/tjfontaine/helpdesk-router/internal/reasoning"
)

const systemPrompt = `Du extrahierst Kontaktdaten aus Text.

Bestimme Nachname, Vorname und E-Mail-Adresse der schreibenden Person.

Antworte ausschließlich mit JSON in genau diesem Schema:
{"name": "<Nachname>", "vorname": "<Vorname>", "email": "<E-Mail-Adresse>"}

Regeln:
- Ein Feld, das nicht eindeutig im Text steht, bleibt ein leerer String. Nichts erfinden.
- Kommagetrenntes Format "Name, Vorname, E-Mail" bedeutet name=Name, vorname=Vorname, email=E-Mail.
- Keine Erklärungen.`

// Extractor implements ports.IdentityExtractor with a reasoning call backed
// by the deterministic Fallback.
type Extractor struct {
	completer ports.Completer
	timeout   time.Duration
	logger    *slog.Logger
}

var _ ports.IdentityExtractor = (*Extractor)(nil)

// NewExtractor creates an extractor. A zero timeout means the caller's deadline applies.
func NewExtractor(completer ports.Completer, timeout time.Duration, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{completer: completer, timeout: timeout, logger: logger}
}

// Extract returns whatever identity fields text contains. Reasoning results
// take precedence per field; the pattern fallback fills the rest.
func (e *Extractor) Extract(ctx context.Context, text string) (domain.Identity, domain.ExtractionMethod) {
	if strings.TrimSpace(text) == "" {
		return domain.Identity{}, domain.MethodNone
	}

	primary := e.reason(ctx, text)
	fallback := Fallback(text)

	switch {
	case !primary.Empty():
		return primary.Merge(fallback), domain.MethodReasoning
	case !fallback.Empty():
		return fallback, domain.MethodPattern
	default:
		return domain.Identity{}, domain.MethodNone
	}
}

type extraction struct {
	Name    string `json:"name"`
	Vorname string `json:"vorname"`
	Email   string `json:"email"`
}

func (e *Extractor) reason(ctx context.Context, text string) domain.Identity {
	if e.completer == nil {
		return domain.Identity{}
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	out, err := e.completer.Complete(ctx, &ports.CompletionRequest{
		Task:   "identity",
		System: systemPrompt,
		User:   "Text:\n\n" + text,
		JSON:   true,
	})
	if err != nil {
		e.logger.Warn("identity extraction degraded", slog.String("error", err.Error()))
		return domain.Identity{}
	}

	var parsed extraction
	if err := reasoning.ParseJSONObject(out, &parsed); err != nil {
		e.logger.Warn("identity extraction unparseable", slog.String("error", err.Error()))
		return domain.Identity{}
	}

	id := domain.Identity{
		Surname:   strings.TrimSpace(parsed.Name),
		GivenName: strings.TrimSpace(parsed.Vorname),
		Email:     NormalizeEmail(parsed.Email),
	}
	if parsed.Email != "" && id.Email == "" {
		e.logger.Debug("identity extraction returned an invalid email")
	}
	return id
}
