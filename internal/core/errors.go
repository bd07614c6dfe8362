package core

import "errors"

// Error codes reported to clients in error frames.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeRateLimited      = "rate_limited"
)

var (
	// ErrBadRequest marks input the router refuses before touching the store.
	ErrBadRequest = errors.New("bad request")
	// ErrStoreUnavailable wraps persistence failures; nothing is delivered when it is returned.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrSessionClosed is returned when pushing to a session that is closing or closed.
	ErrSessionClosed = errors.New("session closed")
	// ErrDeliveryTimeout is returned when a session's outbound queue stays full past the deadline.
	ErrDeliveryTimeout = errors.New("delivery timed out")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ErrorEvent builds an error event for a session's outbound queue.
func ErrorEvent(code, msg string) *Event {
	return &Event{Kind: EventError, Error: coreError(code, msg)}
}
