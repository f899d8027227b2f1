package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	state, found, err := store.Get(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found || state != nil {
		t.Errorf("Get() = %v, %v; want nil, false", state, found)
	}
}

func TestSQLiteStore_UpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := domain.NewConversationState("t1")
	state.AccumulatedIdentity = domain.Identity{Surname: "Schneider", Email: "peter@example.com"}
	state.PendingOriginalRequest = "Ich habe ein Problem mit meinem Login"
	state.AwaitingIdentity = true
	state.Turns = 1
	state.LastStatus = domain.StatusMissingIdentity

	if err := store.Upsert(ctx, state); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	retrieved, found, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}
	if retrieved.AccumulatedIdentity != state.AccumulatedIdentity {
		t.Errorf("AccumulatedIdentity = %+v, want %+v", retrieved.AccumulatedIdentity, state.AccumulatedIdentity)
	}
	if retrieved.PendingOriginalRequest != state.PendingOriginalRequest {
		t.Errorf("PendingOriginalRequest = %q", retrieved.PendingOriginalRequest)
	}
	if !retrieved.AwaitingIdentity {
		t.Error("AwaitingIdentity = false, want true")
	}
	if retrieved.LastStatus != domain.StatusMissingIdentity {
		t.Errorf("LastStatus = %q", retrieved.LastStatus)
	}
}

func TestSQLiteStore_UpsertOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := domain.NewConversationState("t1")
	state.AwaitingIdentity = true
	state.PendingOriginalRequest = "Drucker kaputt"
	if err := store.Upsert(ctx, state); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	state.AwaitingIdentity = false
	state.PendingOriginalRequest = ""
	state.Turns = 2
	if err := store.Upsert(ctx, state); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	retrieved, _, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if retrieved.AwaitingIdentity || retrieved.PendingOriginalRequest != "" {
		t.Errorf("state not overwritten: %+v", retrieved)
	}
	if retrieved.Turns != 2 {
		t.Errorf("Turns = %d, want 2", retrieved.Turns)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	state := domain.NewConversationState("t1")
	state.AccumulatedIdentity = domain.Identity{GivenName: "Peter"}
	if err := store.Upsert(ctx, state); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	store.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer reopened.Close()

	retrieved, found, err := reopened.Get(ctx, "t1")
	if err != nil || !found {
		t.Fatalf("Get() = %v, %v", found, err)
	}
	if retrieved.AccumulatedIdentity.GivenName != "Peter" {
		t.Errorf("GivenName = %q, want Peter", retrieved.AccumulatedIdentity.GivenName)
	}
}

func TestSQLiteStore_UpsertRequiresID(t *testing.T) {
	store := newTestStore(t)

	err := store.Upsert(context.Background(), &domain.ConversationState{})
	if !domain.IsInvariantError(err) {
		t.Fatalf("Upsert() error = %v, want invariant error", err)
	}
}
