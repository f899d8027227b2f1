package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a specific caller error.
type ErrorCode string

const (
	ErrorCodeMissingConversationID       ErrorCode = "missing_conversation_id"
	ErrorCodeEmptyMessage                ErrorCode = "empty_message"
	ErrorCodeMessageTooLong              ErrorCode = "message_too_long"
	ErrorCodeIdentityWithoutConversation ErrorCode = "identity_without_conversation"
	ErrorCodeInvalidRequest              ErrorCode = "invalid_request"
)

// CallerError is returned when a request is rejected before entering the pipeline.
// The message is user-actionable and safe to return verbatim.
type CallerError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *CallerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatusCode returns the status code used by the HTTP surface.
func (e *CallerError) HTTPStatusCode() int {
	return http.StatusBadRequest
}

// NewCallerError creates a caller error.
func NewCallerError(code ErrorCode, message string) *CallerError {
	return &CallerError{Code: code, Message: message}
}

// ErrMissingConversationID creates the error for a turn without a conversation id.
func ErrMissingConversationID() *CallerError {
	return NewCallerError(ErrorCodeMissingConversationID,
		"a conversation id (thread_id) is required; reuse the same id for every turn of one ticket")
}

// ErrEmptyMessage creates the error for a turn without message text.
func ErrEmptyMessage() *CallerError {
	return NewCallerError(ErrorCodeEmptyMessage, "message must not be empty")
}

// ErrMessageTooLong creates the error for a message exceeding the configured limit.
func ErrMessageTooLong(limit int) *CallerError {
	return NewCallerError(ErrorCodeMessageTooLong,
		fmt.Sprintf("message exceeds the maximum length of %d characters", limit))
}

// ErrIdentityWithoutConversation creates the error for an identity-only
// follow-up that arrived without the conversation id of the original request.
func ErrIdentityWithoutConversation() *CallerError {
	return NewCallerError(ErrorCodeIdentityWithoutConversation,
		"identity follow-ups require the thread_id returned with the previous missing_identity response")
}

// ErrInvalidRequest creates the error for a body that could not be decoded.
func ErrInvalidRequest(reason string) *CallerError {
	return NewCallerError(ErrorCodeInvalidRequest, "invalid request body: "+reason)
}

// InvariantError signals a programming error. It is fatal to the run and
// must never be confused with a degraded-but-completed outcome.
type InvariantError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated on %s: %s", e.Field, e.Reason)
}

// HTTPStatusCode returns the status code used by the HTTP surface.
func (e *InvariantError) HTTPStatusCode() int {
	return http.StatusInternalServerError
}

// NewInvariantError creates an invariant error.
func NewInvariantError(field, reason string) *InvariantError {
	return &InvariantError{Field: field, Reason: reason}
}

// IsCallerError reports whether err wraps a CallerError.
func IsCallerError(err error) bool {
	var ce *CallerError
	return errors.As(err, &ce)
}

// IsInvariantError reports whether err wraps an InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// HTTPStatusCode maps any error to a status code, defaulting to 500.
func HTTPStatusCode(err error) int {
	var coded interface{ HTTPStatusCode() int }
	if errors.As(err, &coded) {
		return coded.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}
