package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Close reasons set by the server.
const (
	CloseReasonReplaced = "replaced by a newer connection"
	CloseReasonKicked   = "disconnected by server"
	CloseReasonShutdown = "server shutting down"
)

// SessionState is the lifecycle position of a session. Transitions only move forward.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one user's live connection as seen by the core layer.
// The transport drains Events and tears the connection down once Done is closed.
type Session struct {
	ID     string
	UserID int64

	events chan *Event
	done   chan struct{}

	mu        sync.Mutex
	state     SessionState
	reason    string
	closeOnce sync.Once
}

// NewSession constructs a session in the Connecting state with an outbound queue of size buffer.
func NewSession(userID int64, buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	return &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		events: make(chan *Event, buffer),
		done:   make(chan struct{}),
		state:  StateConnecting,
	}
}

// Events is the outbound queue, FIFO.
func (s *Session) Events() <-chan *Event {
	return s.events
}

// Done is closed when the session has been asked to close.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CloseReason returns the reason passed to the first Close call.
func (s *Session) CloseReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Close signals the transport to tear the connection down. Only the first call has effect.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		close(s.done)
	})
}

// Push enqueues ev, waiting at most timeout for room in the queue.
// A non-positive timeout fails immediately when the queue is full.
func (s *Session) Push(ctx context.Context, ev *Event, timeout time.Duration) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.events <- ev:
		return nil
	default:
	}

	if timeout <= 0 {
		return ErrDeliveryTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-timer.C:
		return ErrDeliveryTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transition moves from one of the allowed states to next.
func (s *Session) transition(next SessionState, from ...SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range from {
		if s.state == f {
			s.state = next
			return true
		}
	}
	return false
}
