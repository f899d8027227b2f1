package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tjfontaine/helpdesk-router/internal/agents/identity"
	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/workflow"
)

const maxBodyBytes = 1 << 20

// ticketRequest is the body of POST /api/v1/tickets.
type ticketRequest struct {
	Message          string `json:"message"`
	ThreadID         string `json:"thread_id"`
	Name             string `json:"name,omitempty"`
	Vorname          string `json:"vorname,omitempty"`
	Email            string `json:"email,omitempty"`
	SimulateDispatch *bool  `json:"simulate_dispatch,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func errorBody(code, message string) errorResponse {
	return errorResponse{Error: errorDetail{Code: code, Message: message}}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ticketRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeCallerError(w, r, domain.ErrInvalidRequest(err.Error()))
		return
	}

	threadID := strings.TrimSpace(req.ThreadID)
	if threadID == "" {
		if identity.IsIdentityOnly(req.Message) {
			s.writeCallerError(w, r, domain.ErrIdentityWithoutConversation())
			return
		}
		threadID = uuid.NewString()
	}
	AddLogField(ctx, "thread_id", threadID)

	simulate := s.simulateDefault
	if req.SimulateDispatch != nil {
		simulate = *req.SimulateDispatch
	}

	result, err := s.engine.Process(ctx, workflow.Turn{
		ConversationID: threadID,
		Message:        req.Message,
		Identity: domain.Identity{
			Surname:   strings.TrimSpace(req.Name),
			GivenName: strings.TrimSpace(req.Vorname),
			Email:     identity.NormalizeEmail(req.Email),
		},
		SimulateDispatch: simulate,
	})

	var callerErr *domain.CallerError
	if errors.As(err, &callerErr) {
		s.writeCallerError(w, r, callerErr)
		return
	}
	if err != nil {
		AddError(ctx, err)
		if result == nil {
			writeJSON(w, http.StatusInternalServerError, errorBody("internal_error", workflow.MessageInternalError))
			return
		}
		writeJSON(w, domain.HTTPStatusCode(err), result)
		return
	}

	AddLogField(ctx, "status", string(result.Status))
	AddLogField(ctx, "category", string(result.Category))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeCallerError(w http.ResponseWriter, r *http.Request, err *domain.CallerError) {
	AddLogField(r.Context(), "caller_error", string(err.Code))
	writeJSON(w, err.HTTPStatusCode(), errorBody(string(err.Code), err.Message))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
