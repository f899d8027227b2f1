// Package domain defines the ticket workflow's core types.
package domain

import (
	"strings"
	"time"
)

// Category classifies the intent of a ticket and drives branching.
type Category string

const (
	CategoryAIHistory Category = "AI_HISTORY"
	CategoryO365      Category = "O365"
	CategoryHardware  Category = "HARDWARE"
	CategoryLogin     Category = "LOGIN"
	CategoryOther     Category = "OTHER"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryAIHistory,
	CategoryO365,
	CategoryHardware,
	CategoryLogin,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryAIHistory: "Frage zur Historie von AI",
	CategoryO365:      "O365 Frage",
	CategoryHardware:  "Bestellung von Hardware",
	CategoryLogin:     "Probleme bei der Anmeldung",
	CategoryOther:     "Sonstiges",
}

// Label returns the human-readable label used on the wire and in prompts.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return categoryLabels[CategoryOther]
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseCategory maps a label or enum name to a Category, case-insensitively.
// Anything unrecognized maps to CategoryOther.
func ParseCategory(raw string) Category {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CategoryOther
	}
	for _, c := range Categories {
		if strings.EqualFold(raw, string(c)) || strings.EqualFold(raw, c.Label()) {
			return c
		}
	}
	return CategoryOther
}

// Status describes where a workflow run stopped.
type Status string

const (
	StatusMissingIdentity    Status = "missing_identity"
	StatusWaitingForIdentity Status = "waiting_for_identity"
	StatusUnsupported        Status = "unsupported"
	StatusCompleted          Status = "completed"
	StatusError              Status = "error"
)

// AwaitingIdentity reports whether the status is one of the identity gate states.
func (s Status) AwaitingIdentity() bool {
	return s == StatusMissingIdentity || s == StatusWaitingForIdentity
}

// Field names one of the required identity fields.
type Field string

const (
	FieldSurname   Field = "surname"
	FieldGivenName Field = "given_name"
	FieldEmail     Field = "email"
)

// RequiredFields lists the identity fields in the order they are requested.
var RequiredFields = []Field{FieldSurname, FieldGivenName, FieldEmail}

var fieldLabels = map[Field]string{
	FieldSurname:   "Name",
	FieldGivenName: "Vorname",
	FieldEmail:     "E-Mail-Adresse",
}

// Label returns the label shown to requesters when the field is missing.
func (f Field) Label() string {
	return fieldLabels[f]
}

// Identity holds the requester's identity. Any field may be empty.
type Identity struct {
	Surname   string `json:"surname,omitempty"`
	GivenName string `json:"given_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Get returns the value of the named field.
func (i Identity) Get(f Field) string {
	switch f {
	case FieldSurname:
		return i.Surname
	case FieldGivenName:
		return i.GivenName
	case FieldEmail:
		return i.Email
	}
	return ""
}

// Merge returns i with every empty field filled from other.
// A present field is never cleared or replaced.
func (i Identity) Merge(other Identity) Identity {
	if i.Surname == "" {
		i.Surname = strings.TrimSpace(other.Surname)
	}
	if i.GivenName == "" {
		i.GivenName = strings.TrimSpace(other.GivenName)
	}
	if i.Email == "" {
		i.Email = strings.TrimSpace(other.Email)
	}
	return i
}

// Missing returns the required fields that are still empty, in request order.
func (i Identity) Missing() []Field {
	var missing []Field
	for _, f := range RequiredFields {
		if strings.TrimSpace(i.Get(f)) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Complete reports whether all required fields are present.
func (i Identity) Complete() bool {
	return len(i.Missing()) == 0
}

// Empty reports whether no field is present.
func (i Identity) Empty() bool {
	return len(i.Missing()) == len(RequiredFields)
}

// DispatchResult records the outcome of the dispatch stage.
type DispatchResult struct {
	Attempted bool           `json:"attempted"`
	Simulated bool           `json:"simulated"`
	Success   bool           `json:"success"`
	Detail    string         `json:"detail,omitempty"`
	Payload   *TicketPayload `json:"payload,omitempty"`
}

// TicketPayload is the structured body delivered to the ticketing endpoint.
type TicketPayload struct {
	Surname   string `json:"name"`
	GivenName string `json:"vorname"`
	Email     string `json:"email"`
	Category  string `json:"kategorie"`
	Summary   string `json:"zusammenfassung"`
	Request   string `json:"anfrage"`
	TicketID  string `json:"ticket_id"`
}

// ConversationState is the persisted cross-turn record for one conversation.
type ConversationState struct {
	ConversationID         string    `json:"conversation_id"`
	AccumulatedIdentity    Identity  `json:"accumulated_identity"`
	PendingOriginalRequest string    `json:"pending_original_request,omitempty"`
	AwaitingIdentity       bool      `json:"awaiting_identity"`
	Turns                  int       `json:"turns"`
	LastStatus             Status    `json:"last_status,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// NewConversationState returns a fresh state with no history.
func NewConversationState(conversationID string) *ConversationState {
	now := time.Now()
	return &ConversationState{
		ConversationID: conversationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a copy safe to mutate independently.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// TicketResult is the outward-facing result of one turn.
type TicketResult struct {
	Status            Status          `json:"status"`
	Message           string          `json:"message"`
	ConversationID    string          `json:"thread_id"`
	TicketID          string          `json:"ticket_id,omitempty"`
	Classification    string          `json:"classification,omitempty"`
	Category          Category        `json:"category,omitempty"`
	Summary           string          `json:"summary,omitempty"`
	Dispatch          *DispatchResult `json:"dispatch,omitempty"`
	IsHistorianAnswer bool            `json:"is_historian_answer"`
	MissingFields     []Field         `json:"missing_fields,omitempty"`
	Degraded          []string        `json:"degraded,omitempty"`
}

// ExtractionMethod tags how an identity extraction was obtained.
type ExtractionMethod string

const (
	MethodReasoning ExtractionMethod = "reasoning"
	MethodPattern   ExtractionMethod = "pattern"
	MethodNone      ExtractionMethod = "none"
)
