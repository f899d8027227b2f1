// Package classification maps an identity-free request to a ticket category.
package classification

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
	"github.com/tjfontaine/helpdesk-router/internal/reasoning"
)

const (
	// MaxSummaryWords caps the summary length.
	MaxSummaryWords = 9
	// DefaultSummary is used when no summary could be produced.
	DefaultSummary = "Ticket"
)

// Classifier implements ports.Classifier on top of a reasoning Completer.
type Classifier struct {
	completer ports.Completer
	timeout   time.Duration
	logger    *slog.Logger
	prompt    string
}

var _ ports.Classifier = (*Classifier)(nil)

// New creates a classifier. A zero timeout means the caller's deadline applies.
func New(completer ports.Completer, timeout time.Duration, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		completer: completer,
		timeout:   timeout,
		logger:    logger,
		prompt:    buildPrompt(),
	}
}

func buildPrompt() string {
	var b strings.Builder
	b.WriteString("Du bist ein Service-Dispatcher. Ordne die folgende Anfrage genau einer dieser Kategorien zu:\n")
	for _, c := range domain.Categories {
		b.WriteString("- ")
		b.WriteString(c.Label())
		b.WriteString("\n")
	}
	b.WriteString(`
Erstelle außerdem eine sehr kurze Zusammenfassung (höchstens 9 Wörter) und eine bereinigte Fassung der Anfrage ohne Grußformeln.

Antworte ausschließlich mit JSON in diesem Schema:
{"category": "<Kategorie exakt wie oben>", "summary": "<höchstens 9 Wörter>", "cleaned_request": "<bereinigter Klartext>"}`)
	return b.String()
}

type verdict struct {
	Category       string `json:"category"`
	Summary        string `json:"summary"`
	CleanedRequest string `json:"cleaned_request"`
}

// Classify never fails: reasoning errors and unparseable answers yield Fallback.
func (c *Classifier) Classify(ctx context.Context, request string) ports.Classification {
	request = strings.TrimSpace(request)
	if request == "" {
		return ports.Classification{Category: domain.CategoryOther, Summary: DefaultSummary}
	}
	if c.completer == nil {
		return Fallback(request)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := c.completer.Complete(ctx, &ports.CompletionRequest{
		Task:   "classification",
		System: c.prompt,
		User:   "Anfrage:\n" + request,
		JSON:   true,
	})
	if err != nil {
		c.logger.Warn("classification degraded", slog.String("error", err.Error()))
		return Fallback(request)
	}

	var v verdict
	if err := reasoning.ParseJSONObject(out, &v); err != nil {
		c.logger.Warn("classification unparseable", slog.String("error", err.Error()))
		return Fallback(request)
	}

	body := strings.TrimSpace(v.CleanedRequest)
	if body == "" {
		body = request
	}

	return ports.Classification{
		Category:       domain.ParseCategory(v.Category),
		Summary:        LimitSummary(v.Summary),
		NormalizedBody: body,
	}
}

// Fallback is the degraded verdict: OTHER with the default summary.
func Fallback(request string) ports.Classification {
	return ports.Classification{
		Category:       domain.CategoryOther,
		Summary:        DefaultSummary,
		NormalizedBody: request,
		Degraded:       true,
	}
}

// LimitSummary collapses whitespace and keeps at most MaxSummaryWords words.
func LimitSummary(summary string) string {
	words := strings.Fields(summary)
	if len(words) == 0 {
		return DefaultSummary
	}
	if len(words) > MaxSummaryWords {
		words = words[:MaxSummaryWords]
	}
	return strings.Join(words, " ")
}
