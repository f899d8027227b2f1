package workflow

import "github.com/tjfontaine/helpdesk-router/internal/core/domain"

// gateDecision is the identity gate's verdict for one turn.
type gateDecision struct {
	complete        bool
	status          domain.Status
	missing         []domain.Field
	originalRequest string
}

// evaluateGate applies the identity gate to state, whose identity already
// includes this turn's extraction, and updates the pending request fields.
//
// While incomplete, the first message of the loop becomes the pending
// request. Later messages are only mined for identity. Once complete, the
// pending request, if any, is the request to process.
func evaluateGate(state *domain.ConversationState, message string) gateDecision {
	missing := state.AccumulatedIdentity.Missing()

	if len(missing) > 0 {
		if state.AwaitingIdentity {
			return gateDecision{status: domain.StatusWaitingForIdentity, missing: missing}
		}
		state.AwaitingIdentity = true
		state.PendingOriginalRequest = message
		return gateDecision{status: domain.StatusMissingIdentity, missing: missing}
	}

	original := message
	if state.AwaitingIdentity && state.PendingOriginalRequest != "" {
		original = state.PendingOriginalRequest
	}
	state.AwaitingIdentity = false
	state.PendingOriginalRequest = ""

	return gateDecision{complete: true, originalRequest: original}
}
