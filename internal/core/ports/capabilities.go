// Package ports defines the interfaces between the workflow engine and its collaborators.
package ports

import (
	"context"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
)

// CompletionRequest is a single prompt sent to the reasoning service.
type CompletionRequest struct {
	// Task names the caller for logs and traces (identity, classification, historian).
	Task string
	// System is the instruction prompt.
	System string
	// User is the text to reason about.
	User string
	// JSON requests a JSON object response.
	JSON bool
	// MaxTokens bounds the completion length. Zero leaves it to the service.
	MaxTokens int
}

// Completer is the external reasoning capability.
type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}

// IdentityExtractor maps text to a partial identity. It never fails outward.
type IdentityExtractor interface {
	Extract(ctx context.Context, text string) (domain.Identity, domain.ExtractionMethod)
}

// Classification is the classifier's verdict for one request.
type Classification struct {
	Category       domain.Category
	Summary        string
	NormalizedBody string
	// Degraded is set when the verdict is the fallback rather than a reasoning result.
	Degraded bool
}

// Classifier maps an identity-stripped request to a category. It never fails outward.
type Classifier interface {
	Classify(ctx context.Context, request string) Classification
}

// Historian answers questions directly. On failure it returns an apology
// text and degraded=true.
type Historian interface {
	Answer(ctx context.Context, request string) (answer string, degraded bool)
}

// TicketPoster delivers a ticket payload to the external ticketing endpoint.
// Failures are reported through success/detail, not as errors.
type TicketPoster interface {
	PostTicket(ctx context.Context, payload *domain.TicketPayload) (success bool, detail string)
}
