package domain

// Component names recorded in TicketContext.Degraded.
const (
	DegradedExtractor  = "extractor"
	DegradedClassifier = "classifier"
	DegradedHistorian  = "historian"
	DegradedDispatch   = "dispatch"
)

// TicketContext is the mutable record threaded through one workflow run.
// It is owned by a single run and discarded once the result is produced.
type TicketContext struct {
	ConversationID  string
	TicketID        string
	CurrentMessage  string
	Identity        Identity
	Summary         string
	NormalizedBody  string
	HistorianAnswer string
	Dispatch        *DispatchResult
	Status          Status
	Degraded        []string

	// Result is set by the formatter, the last stage of every route.
	Result *TicketResult

	originalRequest string
	category        Category
}

// NewTicketContext creates the context for one run.
func NewTicketContext(conversationID, ticketID, message string) *TicketContext {
	return &TicketContext{
		ConversationID: conversationID,
		TicketID:       ticketID,
		CurrentMessage: message,
	}
}

// OriginalRequest returns the request text this run processes.
func (tc *TicketContext) OriginalRequest() string {
	return tc.originalRequest
}

// SetOriginalRequest sets the original request. It may only be called once.
func (tc *TicketContext) SetOriginalRequest(text string) error {
	if tc.originalRequest != "" {
		return NewInvariantError("original_request", "original request is already set")
	}
	if text == "" {
		return NewInvariantError("original_request", "original request must not be empty")
	}
	tc.originalRequest = text
	return nil
}

// Category returns the classified category, or "" before classification.
func (tc *TicketContext) Category() Category {
	return tc.category
}

// SetCategory records the classification. It may only be called once.
func (tc *TicketContext) SetCategory(c Category) error {
	if tc.category != "" {
		return NewInvariantError("category", "category is already set")
	}
	if !c.Valid() {
		return NewInvariantError("category", "unknown category "+string(c))
	}
	tc.category = c
	return nil
}

// MarkDegraded records that a stage fell back to its safe default.
func (tc *TicketContext) MarkDegraded(stage string) {
	for _, s := range tc.Degraded {
		if s == stage {
			return
		}
	}
	tc.Degraded = append(tc.Degraded, stage)
}

// IsDegraded reports whether the named stage fell back.
func (tc *TicketContext) IsDegraded(stage string) bool {
	for _, s := range tc.Degraded {
		if s == stage {
			return true
		}
	}
	return false
}
