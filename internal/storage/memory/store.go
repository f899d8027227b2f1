package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/storage"
)

// Store is an in-process implementation of storage.StateStore.
// States are retained for the lifetime of the process.
type Store struct {
	mu     sync.RWMutex
	states map[string]*domain.ConversationState
	locks  *storage.KeyedLocker
}

// Ensure Store implements StateStore
var _ storage.StateStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		states: make(map[string]*domain.ConversationState),
		locks:  storage.NewKeyedLocker(),
	}
}

func (s *Store) Get(ctx context.Context, id string) (*domain.ConversationState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.states[id]
	if !exists {
		return nil, false, nil
	}

	return state.Clone(), true, nil
}

func (s *Store) Upsert(ctx context.Context, state *domain.ConversationState) error {
	if state == nil || state.ConversationID == "" {
		return domain.NewInvariantError("conversation_id", "cannot upsert state without a conversation id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := state.Clone()
	if existing, ok := s.states[state.ConversationID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = time.Now()

	s.states[state.ConversationID] = stored
	return nil
}

func (s *Store) WithLock(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	return s.locks.WithLock(ctx, id, fn)
}

func (s *Store) Close() error {
	return nil
}
