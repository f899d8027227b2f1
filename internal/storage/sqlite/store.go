package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/storage"
)

// Store is a SQLite implementation of storage.StateStore.
// Per-conversation serialization is process-local; the database is not
// meant to be shared by several running engines.
type Store struct {
	db    *sqlx.DB
	locks *storage.KeyedLocker
}

// stateRow mirrors the conversation_state table.
type stateRow struct {
	ConversationID         string    `db:"conversation_id"`
	Identity               string    `db:"identity"`
	PendingOriginalRequest string    `db:"pending_original_request"`
	AwaitingIdentity       bool      `db:"awaiting_identity"`
	Turns                  int       `db:"turns"`
	LastStatus             string    `db:"last_status"`
	CreatedAt              time.Time `db:"created_at"`
	UpdatedAt              time.Time `db:"updated_at"`
}

// Ensure Store implements StateStore
var _ storage.StateStore = (*Store)(nil)

// New opens (creating if needed) the SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, locks: storage.NewKeyedLocker()}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversation_state (
			conversation_id TEXT PRIMARY KEY,
			identity TEXT NOT NULL,
			pending_original_request TEXT NOT NULL DEFAULT '',
			awaiting_identity INTEGER NOT NULL DEFAULT 0,
			turns INTEGER NOT NULL DEFAULT 0,
			last_status TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_state_awaiting ON conversation_state(awaiting_identity)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_state_updated ON conversation_state(updated_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.ConversationState, bool, error) {
	query := `SELECT conversation_id, identity, pending_original_request, awaiting_identity,
	                 turns, last_status, created_at, updated_at
	          FROM conversation_state WHERE conversation_id = ?`

	var row stateRow
	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get conversation state: %w", err)
	}

	state := &domain.ConversationState{
		ConversationID:         row.ConversationID,
		PendingOriginalRequest: row.PendingOriginalRequest,
		AwaitingIdentity:       row.AwaitingIdentity,
		Turns:                  row.Turns,
		LastStatus:             domain.Status(row.LastStatus),
		CreatedAt:              row.CreatedAt,
		UpdatedAt:              row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.Identity), &state.AccumulatedIdentity); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal identity: %w", err)
	}

	return state, true, nil
}

func (s *Store) Upsert(ctx context.Context, state *domain.ConversationState) error {
	if state == nil || state.ConversationID == "" {
		return domain.NewInvariantError("conversation_id", "cannot upsert state without a conversation id")
	}

	identity, err := json.Marshal(state.AccumulatedIdentity)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	now := time.Now().UTC()
	createdAt := state.CreatedAt.UTC()
	if state.CreatedAt.IsZero() {
		createdAt = now
	}

	row := stateRow{
		ConversationID:         state.ConversationID,
		Identity:               string(identity),
		PendingOriginalRequest: state.PendingOriginalRequest,
		AwaitingIdentity:       state.AwaitingIdentity,
		Turns:                  state.Turns,
		LastStatus:             string(state.LastStatus),
		CreatedAt:              createdAt,
		UpdatedAt:              now,
	}

	query := `INSERT INTO conversation_state
	              (conversation_id, identity, pending_original_request, awaiting_identity,
	               turns, last_status, created_at, updated_at)
	          VALUES (:conversation_id, :identity, :pending_original_request, :awaiting_identity,
	                  :turns, :last_status, :created_at, :updated_at)
	          ON CONFLICT(conversation_id) DO UPDATE SET
	              identity = excluded.identity,
	              pending_original_request = excluded.pending_original_request,
	              awaiting_identity = excluded.awaiting_identity,
	              turns = excluded.turns,
	              last_status = excluded.last_status,
	              updated_at = excluded.updated_at`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to upsert conversation state: %w", err)
	}

	return nil
}

func (s *Store) WithLock(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	return s.locks.WithLock(ctx, id, fn)
}

func (s *Store) Close() error {
	return s.db.Close()
}
