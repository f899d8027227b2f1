package ports

import (
	"context"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
)

// StateStore persists ConversationState keyed by conversation id.
// Only the workflow engine talks to it.
type StateStore interface {
	// Get returns the state for id. found is false when no state exists yet.
	Get(ctx context.Context, id string) (state *domain.ConversationState, found bool, err error)

	// Upsert creates or replaces the state keyed by state.ConversationID.
	Upsert(ctx context.Context, state *domain.ConversationState) error

	// WithLock runs fn while holding the exclusive section for id.
	// Calls for the same id are serialized; different ids run in parallel.
	WithLock(ctx context.Context, id string, fn func(ctx context.Context) error) error

	// Close releases any underlying resources.
	Close() error
}
