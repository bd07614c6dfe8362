package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventDirectMessage carries a message pushed to its receiver.
	EventDirectMessage EventKind = iota
	// EventError notifies the client that one of its frames was rejected.
	EventError
)

// Event is queued on a session and written to the client by the transport.
type Event struct {
	Kind      EventKind
	SenderID  int64
	Content   string
	Timestamp time.Time
	Error     *CoreError // non-nil for EventError
}
