package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/helpdesk-router/internal/agents/identity"
	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
	"github.com/tjfontaine/helpdesk-router/internal/pipeline"
	"github.com/tjfontaine/helpdesk-router/internal/storage/memory"
	"github.com/tjfontaine/helpdesk-router/internal/storage/sqlite"
)

const (
	loginRequest   = "Ich habe ein Problem mit meinem Login"
	identityLine   = "Schneider, Peter, peter@example.com"
	historyRequest = "Wann wurde der Begriff künstliche Intelligenz geprägt?"
)

// patternExtractor extracts identity with the deterministic fallback only.
type patternExtractor struct {
	active    atomic.Int32
	maxActive atomic.Int32
	delay     time.Duration
}

func (x *patternExtractor) Extract(ctx context.Context, text string) (domain.Identity, domain.ExtractionMethod) {
	n := x.active.Add(1)
	defer x.active.Add(-1)
	for {
		m := x.maxActive.Load()
		if n <= m || x.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if x.delay > 0 {
		time.Sleep(x.delay)
	}

	id := identity.Fallback(text)
	if id.Empty() {
		return id, domain.MethodNone
	}
	return id, domain.MethodPattern
}

// keywordClassifier classifies by keyword and records what it was shown.
type keywordClassifier struct {
	mu       sync.Mutex
	requests []string
	degraded bool
}

func (c *keywordClassifier) Classify(ctx context.Context, request string) ports.Classification {
	c.mu.Lock()
	c.requests = append(c.requests, request)
	c.mu.Unlock()

	category := domain.CategoryOther
	switch {
	case strings.Contains(request, "Login"):
		category = domain.CategoryLogin
	case strings.Contains(request, "Intelligenz"):
		category = domain.CategoryAIHistory
	case strings.Contains(request, "Laptop"):
		category = domain.CategoryHardware
	}
	return ports.Classification{
		Category:       category,
		Summary:        "Zusammenfassung",
		NormalizedBody: request,
		Degraded:       c.degraded,
	}
}

type stubHistorian struct{ calls atomic.Int32 }

func (h *stubHistorian) Answer(ctx context.Context, question string) (string, bool) {
	h.calls.Add(1)
	return "Der Begriff wurde 1956 auf der Dartmouth-Konferenz geprägt.", false
}

type stubPoster struct{ calls atomic.Int32 }

func (p *stubPoster) PostTicket(ctx context.Context, payload *domain.TicketPayload) (bool, string) {
	p.calls.Add(1)
	return true, "status 201"
}

type fixture struct {
	engine     *Engine
	store      *memory.Store
	extractor  *patternExtractor
	classifier *keywordClassifier
	historian  *stubHistorian
	poster     *stubPoster
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:      memory.New(),
		extractor:  &patternExtractor{},
		classifier: &keywordClassifier{},
		historian:  &stubHistorian{},
		poster:     &stubPoster{},
	}
	executor, err := pipeline.NewDefaultExecutor(f.historian, f.poster, nil)
	if err != nil {
		t.Fatalf("NewDefaultExecutor: %v", err)
	}
	n := 0
	opts = append([]Option{WithTicketIDs(func() string {
		n++
		return fmt.Sprintf("ticket-%d", n)
	})}, opts...)
	f.engine = New(f.store, f.extractor, f.classifier, executor, opts...)
	return f
}

func (f *fixture) state(t *testing.T, id string) *domain.ConversationState {
	t.Helper()
	state, found, err := f.store.Get(context.Background(), id)
	if err != nil || !found {
		t.Fatalf("state for %s: found=%v err=%v", id, found, err)
	}
	return state
}

func assertNoState(t *testing.T, store ports.StateStore, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, found, err := store.Get(context.Background(), id); err != nil || found {
			t.Errorf("state for %q: found=%v err=%v, want none", id, found, err)
		}
	}
}

func TestEngine_MissingIdentityThenFollowUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.ProcessTurn(ctx, "t1", loginRequest, true)
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if first.Status != domain.StatusMissingIdentity {
		t.Errorf("status = %s, want missing_identity", first.Status)
	}
	if first.Category != "" || first.Classification != "" {
		t.Errorf("no category expected before identity, got %q", first.Category)
	}
	if len(first.MissingFields) != 3 {
		t.Errorf("missing fields = %v", first.MissingFields)
	}
	if len(f.classifier.requests) != 0 {
		t.Error("classifier must not run while identity is missing")
	}

	state := f.state(t, "t1")
	if !state.AwaitingIdentity || state.PendingOriginalRequest != loginRequest {
		t.Errorf("unexpected state after first turn: %+v", state)
	}

	second, err := f.engine.ProcessTurn(ctx, "t1", identityLine, true)
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if second.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", second.Status)
	}
	if second.Category != domain.CategoryLogin {
		t.Errorf("category = %s, want LOGIN", second.Category)
	}
	if second.Dispatch == nil || !second.Dispatch.Simulated || !second.Dispatch.Success {
		t.Errorf("expected simulated successful dispatch, got %+v", second.Dispatch)
	}
	if got := second.Dispatch.Payload.Request; got != loginRequest {
		t.Errorf("payload request = %q, want the first message verbatim", got)
	}
	if len(f.classifier.requests) != 1 || f.classifier.requests[0] != loginRequest {
		t.Errorf("classifier saw %q, want only the original request", f.classifier.requests)
	}
	if f.poster.calls.Load() != 0 {
		t.Error("simulated dispatch must not post")
	}

	state = f.state(t, "t1")
	if state.AwaitingIdentity || state.PendingOriginalRequest != "" {
		t.Errorf("pending request should be cleared: %+v", state)
	}
	if state.Turns != 2 || state.LastStatus != domain.StatusCompleted {
		t.Errorf("turns=%d last_status=%s", state.Turns, state.LastStatus)
	}
}

func TestEngine_WaitingForIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.ProcessTurn(ctx, "t2", loginRequest, true); err != nil {
		t.Fatal(err)
	}

	res, err := f.engine.ProcessTurn(ctx, "t2", "Vorname: Peter", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StatusWaitingForIdentity {
		t.Errorf("status = %s, want waiting_for_identity", res.Status)
	}
	want := []domain.Field{domain.FieldSurname, domain.FieldEmail}
	if fmt.Sprint(res.MissingFields) != fmt.Sprint(want) {
		t.Errorf("missing = %v, want %v", res.MissingFields, want)
	}
	if strings.Contains(res.Message, "Vorname,") {
		t.Errorf("clarification must not ask for the given name again: %q", res.Message)
	}

	res, err = f.engine.ProcessTurn(ctx, "t2", "Name: Schneider, E-Mail: peter@example.com", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", res.Status)
	}
	payload := res.Dispatch.Payload
	if payload.Surname != "Schneider" || payload.GivenName != "Peter" || payload.Email != "peter@example.com" {
		t.Errorf("payload identity = %+v", payload)
	}
	if payload.Request != loginRequest {
		t.Errorf("payload request = %q", payload.Request)
	}
}

func TestEngine_HistorianInline(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.ProcessTurn(context.Background(), "t3", identityLine+"\n"+historyRequest, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StatusCompleted || !res.IsHistorianAnswer {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Dispatch == nil || !res.Dispatch.Attempted {
		t.Error("dispatch should be attempted once")
	}
	if f.historian.calls.Load() != 1 {
		t.Errorf("historian calls = %d", f.historian.calls.Load())
	}
	if got := f.classifier.requests[0]; got != historyRequest {
		t.Errorf("classifier saw %q, identity should be stripped", got)
	}
}

func TestEngine_Unsupported(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.ProcessTurn(context.Background(), "t4", identityLine+"\nWie wird das Wetter morgen?", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StatusUnsupported {
		t.Errorf("status = %s, want unsupported", res.Status)
	}
	if res.Dispatch != nil || res.IsHistorianAnswer {
		t.Errorf("unsupported result must not carry dispatch or historian answer: %+v", res)
	}
	if f.poster.calls.Load() != 0 || f.historian.calls.Load() != 0 {
		t.Error("no stage besides the formatter should run")
	}
}

func TestEngine_UnsupportedAfterIdentityFollowUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const weather = "Wie wird das Wetter morgen?"

	first, err := f.engine.ProcessTurn(ctx, "t4b", weather, false)
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != domain.StatusMissingIdentity {
		t.Fatalf("status = %s, want missing_identity", first.Status)
	}

	second, err := f.engine.ProcessTurn(ctx, "t4b", identityLine, false)
	if err != nil {
		t.Fatal(err)
	}
	if second.Status != domain.StatusUnsupported {
		t.Errorf("status = %s, want unsupported", second.Status)
	}
	if second.Dispatch != nil || second.IsHistorianAnswer {
		t.Errorf("unsupported result must not carry dispatch or historian answer: %+v", second)
	}
	if f.poster.calls.Load() != 0 || f.historian.calls.Load() != 0 {
		t.Error("no stage besides the formatter should run")
	}
	if len(f.classifier.requests) != 1 || f.classifier.requests[0] != weather {
		t.Errorf("classifier saw %q, want the first message", f.classifier.requests)
	}
	if state := f.state(t, "t4b"); state.AwaitingIdentity || state.LastStatus != domain.StatusUnsupported {
		t.Errorf("state = %+v", state)
	}
}

func TestEngine_RealDispatchOnce(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.ProcessTurn(context.Background(), "t5", identityLine+"\nIch brauche einen neuen Laptop", false)
	if err != nil {
		t.Fatal(err)
	}
	if f.poster.calls.Load() != 1 {
		t.Errorf("poster calls = %d, want 1", f.poster.calls.Load())
	}
	if res.Dispatch.Simulated {
		t.Error("dispatch should be real")
	}
	if res.Dispatch.Payload.TicketID != res.TicketID {
		t.Errorf("payload ticket id %q != result ticket id %q", res.Dispatch.Payload.TicketID, res.TicketID)
	}
}

func TestEngine_ForceSimulate(t *testing.T) {
	f := newFixture(t, WithForceSimulate(true))

	res, err := f.engine.ProcessTurn(context.Background(), "t6", identityLine+"\nIch brauche einen neuen Laptop", false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Dispatch.Simulated || f.poster.calls.Load() != 0 {
		t.Errorf("forced simulation ignored: %+v", res.Dispatch)
	}
}

func TestEngine_IdentityMergeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.ProcessTurn(ctx, "t7", identityLine+"\nLogin geht nicht", true); err != nil {
		t.Fatal(err)
	}
	before := f.state(t, "t7").AccumulatedIdentity

	res, err := f.engine.ProcessTurn(ctx, "t7", "Mein Login geht schon wieder nicht", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StatusCompleted {
		t.Errorf("known identity should pass the gate, got %s", res.Status)
	}
	if after := f.state(t, "t7").AccumulatedIdentity; after != before {
		t.Errorf("identity changed from %+v to %+v", before, after)
	}
}

func TestEngine_NewIdentityReplacesStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	turn := func(msg string, id domain.Identity) *domain.TicketPayload {
		t.Helper()
		res, err := f.engine.Process(ctx, Turn{ConversationID: "t7b", Message: msg, Identity: id, SimulateDispatch: true})
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != domain.StatusCompleted {
			t.Fatalf("status = %s, want completed", res.Status)
		}
		return res.Dispatch.Payload
	}

	turn(loginRequest, domain.Identity{Surname: "Alt", GivenName: "Anna", Email: "anna@example.com"})

	p := turn(loginRequest, domain.Identity{Surname: "Neu", GivenName: "Bert", Email: "bert@example.com"})
	if p.Surname != "Neu" || p.GivenName != "Bert" || p.Email != "bert@example.com" {
		t.Errorf("explicit identity ignored: %+v", p)
	}

	p = turn("Meier, Clara, clara@example.com\nIch brauche einen neuen Laptop", domain.Identity{})
	if p.Surname != "Meier" || p.GivenName != "Clara" || p.Email != "clara@example.com" {
		t.Errorf("inline identity ignored: %+v", p)
	}

	p = turn("Vorname: Dora\nLogin geht nicht", domain.Identity{})
	if p.Surname != "Meier" || p.GivenName != "Dora" || p.Email != "clara@example.com" {
		t.Errorf("partial identity should only replace its own field: %+v", p)
	}
}

func TestEngine_OriginalRequestKeptVerbatim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw := "  " + loginRequest + "\n\n"

	if _, err := f.engine.ProcessTurn(ctx, "t7c", raw, true); err != nil {
		t.Fatal(err)
	}
	res, err := f.engine.ProcessTurn(ctx, "t7c", identityLine, true)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Dispatch.Payload.Request; got != raw {
		t.Errorf("payload request = %q, want %q", got, raw)
	}
}

func TestEngine_ExplicitIdentity(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Process(context.Background(), Turn{
		ConversationID:   "t8",
		Message:          loginRequest,
		Identity:         domain.Identity{Surname: "Schneider", GivenName: "Peter", Email: "peter@example.com"},
		SimulateDispatch: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StatusCompleted {
		t.Errorf("status = %s", res.Status)
	}
}

func TestEngine_CallerErrors(t *testing.T) {
	f := newFixture(t, WithMaxMessageChars(10))

	tests := []struct {
		name string
		id   string
		msg  string
		code domain.ErrorCode
	}{
		{"missing id", "  ", "hallo", domain.ErrorCodeMissingConversationID},
		{"empty message", "t9", " \n ", domain.ErrorCodeEmptyMessage},
		{"too long", "t9", "äöüäöüäöüäöü", domain.ErrorCodeMessageTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.engine.ProcessTurn(context.Background(), tt.id, tt.msg, true)
			if res != nil {
				t.Errorf("caller errors carry no result, got %+v", res)
			}
			var ce *domain.CallerError
			if !errors.As(err, &ce) {
				t.Fatalf("expected caller error, got %v", err)
			}
			if ce.Code != tt.code {
				t.Errorf("code = %s, want %s", ce.Code, tt.code)
			}
		})
	}

	assertNoState(t, f.store, "t9")
}

type failingStage struct{ name ports.StageName }

func (s failingStage) Name() ports.StageName { return s.name }

func (s failingStage) Process(ctx context.Context, tc *domain.TicketContext, opts ports.RunOptions) error {
	return domain.NewInvariantError("identity", "incomplete identity reached dispatch")
}

func TestEngine_InvariantViolation(t *testing.T) {
	store := memory.New()
	executor, err := pipeline.NewExecutor(nil,
		pipeline.NewHistorianStage(&stubHistorian{}),
		failingStage{name: ports.StageDispatch},
		pipeline.Formatter{},
	)
	if err != nil {
		t.Fatal(err)
	}
	e := New(store, &patternExtractor{}, &keywordClassifier{}, executor)

	res, err := e.ProcessTurn(context.Background(), "t10", identityLine+"\nLogin kaputt", true)
	if !domain.IsInvariantError(err) {
		t.Fatalf("expected invariant error, got %v", err)
	}
	if res == nil || res.Status != domain.StatusError {
		t.Fatalf("expected error status result, got %+v", res)
	}
	assertNoState(t, store, "t10")
}

// slowClassifier holds the turn until its deadline passes.
type slowClassifier struct{}

func (slowClassifier) Classify(ctx context.Context, request string) ports.Classification {
	<-ctx.Done()
	return ports.Classification{Category: domain.CategoryLogin, Summary: "Login", NormalizedBody: request, Degraded: true}
}

func TestEngine_PersistsAfterDeadline(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	poster := &stubPoster{}
	executor, err := pipeline.NewDefaultExecutor(&stubHistorian{}, poster, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := New(store, &patternExtractor{}, slowClassifier{}, executor)

	if _, err := e.ProcessTurn(context.Background(), "t12", loginRequest, false); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res, err := e.ProcessTurn(ctx, "t12", identityLine, false)
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v, want the delivered ticket reported", err)
	}
	if res.Status != domain.StatusCompleted || poster.calls.Load() != 1 {
		t.Fatalf("status = %s posts = %d", res.Status, poster.calls.Load())
	}

	state, found, err := store.Get(context.Background(), "t12")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if state.AwaitingIdentity || state.PendingOriginalRequest != "" || state.LastStatus != domain.StatusCompleted {
		t.Errorf("state not persisted after the deadline: %+v", state)
	}
}

func TestEngine_ClassifierDegraded(t *testing.T) {
	f := newFixture(t)
	f.classifier.degraded = true

	res, err := f.engine.ProcessTurn(context.Background(), "t11", identityLine+"\nirgendwas", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StatusUnsupported {
		t.Errorf("status = %s", res.Status)
	}
	if len(res.Degraded) != 1 || res.Degraded[0] != domain.DegradedClassifier {
		t.Errorf("degraded = %v", res.Degraded)
	}
}

func TestEngine_SerializesSameConversation(t *testing.T) {
	f := newFixture(t)
	f.extractor.delay = time.Millisecond

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.ProcessTurn(context.Background(), "shared", identityLine+"\nLogin kaputt", true); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if peak := f.extractor.maxActive.Load(); peak != 1 {
		t.Errorf("max concurrent runs for one conversation = %d, want 1", peak)
	}
	if got := f.state(t, "shared").Turns; got != turns {
		t.Errorf("turns = %d, want %d", got, turns)
	}
}
