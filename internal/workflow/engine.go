// Package workflow implements the ticket workflow engine: the identity gate,
// classification and the routed stage run for one conversation turn.
package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tjfontaine/helpdesk-router/internal/agents/identity"
	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
	"github.com/tjfontaine/helpdesk-router/internal/pipeline"
	"github.com/tjfontaine/helpdesk-router/internal/telemetry"
)

// MessageInternalError is returned to requesters when a run hits an invariant violation.
const MessageInternalError = "Bei der Verarbeitung ist ein interner Fehler aufgetreten. Bitte versuche es später erneut."

// persistTimeout bounds a state write. Writes are detached from the turn's
// deadline, so a turn that already dispatched always records its state.
const persistTimeout = 5 * time.Second

// Turn is one inbound message.
type Turn struct {
	ConversationID string
	Message        string
	// Identity holds explicitly supplied fields. They take precedence over
	// values extracted from Message and over fields stored from earlier turns.
	Identity         domain.Identity
	SimulateDispatch bool
}

// Engine processes conversation turns. It is the only component that reads
// or writes ConversationState.
type Engine struct {
	store      ports.StateStore
	extractor  ports.IdentityExtractor
	classifier ports.Classifier
	executor   *pipeline.Executor

	maxMessageChars int
	forceSimulate   bool
	newTicketID     func() string
	logger          *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxMessageChars rejects messages longer than n runes. Zero disables the check.
func WithMaxMessageChars(n int) Option {
	return func(e *Engine) { e.maxMessageChars = n }
}

// WithForceSimulate makes every dispatch simulated regardless of the turn.
func WithForceSimulate(force bool) Option {
	return func(e *Engine) { e.forceSimulate = force }
}

// WithTicketIDs overrides ticket id generation.
func WithTicketIDs(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newTicketID = fn
		}
	}
}

// New creates an engine.
func New(store ports.StateStore, extractor ports.IdentityExtractor, classifier ports.Classifier, executor *pipeline.Executor, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		extractor:   extractor,
		classifier:  classifier,
		executor:    executor,
		newTicketID: uuid.NewString,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessTurn handles one message for conversationID.
func (e *Engine) ProcessTurn(ctx context.Context, conversationID, message string, simulateDispatch bool) (*domain.TicketResult, error) {
	return e.Process(ctx, Turn{
		ConversationID:   conversationID,
		Message:          message,
		SimulateDispatch: simulateDispatch,
	})
}

// Process handles one turn. Caller errors are returned without a result.
// Any other error comes with a result whose status is error. The message is
// kept verbatim; surrounding whitespace only matters for the emptiness check.
func (e *Engine) Process(ctx context.Context, turn Turn) (*domain.TicketResult, error) {
	conversationID := strings.TrimSpace(turn.ConversationID)
	message := turn.Message

	if err := e.validate(conversationID, message); err != nil {
		e.logger.Debug("turn rejected",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()))
		return nil, err
	}

	simulate := turn.SimulateDispatch
	if e.forceSimulate && !simulate {
		e.logger.Info("real dispatch requested but simulation is forced",
			slog.String("conversation_id", conversationID))
		simulate = true
	}

	ctx, span := telemetry.Tracer().Start(ctx, "workflow.process_turn")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	var result *domain.TicketResult
	err := e.store.WithLock(ctx, conversationID, func(ctx context.Context) error {
		var err error
		result, err = e.run(ctx, conversationID, message, turn.Identity, simulate)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("turn failed",
			slog.String("conversation_id", conversationID),
			slog.Bool("invariant", domain.IsInvariantError(err)),
			slog.String("error", err.Error()))
		return &domain.TicketResult{
			Status:         domain.StatusError,
			Message:        MessageInternalError,
			ConversationID: conversationID,
		}, err
	}

	span.SetAttributes(attribute.String("ticket.status", string(result.Status)))
	return result, nil
}

func (e *Engine) validate(conversationID, message string) error {
	if conversationID == "" {
		return domain.ErrMissingConversationID()
	}
	if strings.TrimSpace(message) == "" {
		return domain.ErrEmptyMessage()
	}
	if e.maxMessageChars > 0 && utf8.RuneCountInString(message) > e.maxMessageChars {
		return domain.ErrMessageTooLong(e.maxMessageChars)
	}
	return nil
}

// run executes the turn while the conversation lock is held.
func (e *Engine) run(ctx context.Context, conversationID, message string, explicit domain.Identity, simulate bool) (*domain.TicketResult, error) {
	state, found, err := e.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !found {
		state = domain.NewConversationState(conversationID)
	}
	state.Turns++

	tc := domain.NewTicketContext(conversationID, e.newTicketID(), message)

	// Fields from this turn replace stored ones; empty fields never clear them.
	extracted, method := e.extractor.Extract(ctx, message)
	merged := explicit.Merge(extracted).Merge(state.AccumulatedIdentity)
	state.AccumulatedIdentity = merged

	e.logger.Debug("identity extracted",
		slog.String("conversation_id", conversationID),
		slog.String("method", string(method)),
		slog.Int("missing", len(merged.Missing())))

	gate := evaluateGate(state, message)
	if !gate.complete {
		state.LastStatus = gate.status
		if err := e.persist(ctx, state); err != nil {
			return nil, err
		}
		e.logger.Info("identity incomplete",
			slog.String("conversation_id", conversationID),
			slog.String("status", string(gate.status)),
			slog.Any("missing", gate.missing))
		return pipeline.ClarificationResult(conversationID, gate.status, gate.missing), nil
	}

	tc.Identity = merged
	if err := tc.SetOriginalRequest(gate.originalRequest); err != nil {
		return nil, err
	}

	if err := e.classify(ctx, tc); err != nil {
		return nil, err
	}

	if err := e.executor.Run(ctx, tc, ports.RunOptions{SimulateDispatch: simulate}); err != nil {
		return nil, err
	}

	state.LastStatus = tc.Result.Status
	if err := e.persist(ctx, state); err != nil {
		return nil, err
	}

	e.logger.Info("turn completed",
		slog.String("conversation_id", conversationID),
		slog.String("ticket_id", tc.TicketID),
		slog.String("status", string(tc.Result.Status)),
		slog.String("category", string(tc.Category())),
		slog.Any("degraded", tc.Degraded))

	return tc.Result, nil
}

func (e *Engine) persist(ctx context.Context, state *domain.ConversationState) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return e.store.Upsert(ctx, state)
}

// classify sets category, summary and body on tc. The classifier only sees
// the request with identity details removed.
func (e *Engine) classify(ctx context.Context, tc *domain.TicketContext) error {
	ctx, span := telemetry.Tracer().Start(ctx, "workflow.classify")
	defer span.End()

	verdict := e.classifier.Classify(ctx, identity.StripIdentity(tc.OriginalRequest()))
	if verdict.Degraded {
		tc.MarkDegraded(domain.DegradedClassifier)
	}
	if !verdict.Category.Valid() {
		verdict.Category = domain.CategoryOther
	}

	if err := tc.SetCategory(verdict.Category); err != nil {
		return err
	}
	tc.Summary = verdict.Summary
	tc.NormalizedBody = verdict.NormalizedBody

	span.SetAttributes(
		attribute.String("ticket.category", string(verdict.Category)),
		attribute.Bool("ticket.degraded", verdict.Degraded),
	)
	return nil
}
