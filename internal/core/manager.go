package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

const userLockStripes = 64

// PresenceWriter persists online/offline transitions.
type PresenceWriter interface {
	UpdatePresence(ctx context.Context, userID int64, status store.PresenceStatus, at time.Time) error
}

// Manager tracks live sessions and pushes events to them.
// It is the only component the transport talks to for connection lifecycle.
type Manager struct {
	table           *PresenceTable
	presence        PresenceWriter
	deliveryTimeout time.Duration
	log             *zerolog.Logger
	now             func() time.Time

	// Connect and Disconnect for the same user are serialized so the
	// persisted status always matches the last table mutation.
	userLocks [userLockStripes]sync.Mutex
}

// NewManager creates a manager. presence may be nil.
func NewManager(presence PresenceWriter, deliveryTimeout time.Duration, logger *zerolog.Logger) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Manager{
		table:           NewPresenceTable(),
		presence:        presence,
		deliveryTimeout: deliveryTimeout,
		log:             logger,
		now:             time.Now,
	}
}

// Connect opens s, registers it and marks the user online.
// A session already registered for the same user is closed with CloseReasonReplaced.
func (m *Manager) Connect(ctx context.Context, s *Session) error {
	if !s.transition(StateOpen, StateConnecting) {
		return ErrSessionClosed
	}

	lock := m.userLock(s.UserID)
	lock.Lock()
	defer lock.Unlock()

	if prev := m.table.Register(s.UserID, s); prev != nil && prev != s {
		m.log.Info().
			Int64("user_id", s.UserID).
			Str("session_id", prev.ID).
			Str("replaced_by", s.ID).
			Msg("closing displaced session")
		prev.Close(CloseReasonReplaced)
	}

	m.writePresence(ctx, s.UserID, store.StatusOnline)
	m.log.Debug().Int64("user_id", s.UserID).Str("session_id", s.ID).Int("online", m.table.Len()).Msg("session connected")
	return nil
}

// Disconnect unregisters s and marks the user offline if s was still the
// registered session. Runs at most once per session; later calls are no-ops.
// The presence write completes before Disconnect returns.
func (m *Manager) Disconnect(ctx context.Context, s *Session) {
	lock := m.userLock(s.UserID)
	lock.Lock()
	released := m.release(ctx, s)
	lock.Unlock()

	if released {
		m.finish(s)
	}
}

// DisconnectUser closes the live session of userID, if any, and reports whether one existed.
// The lookup and the close happen under the user lock so a concurrent reconnect is never closed.
func (m *Manager) DisconnectUser(ctx context.Context, userID int64) bool {
	lock := m.userLock(userID)
	lock.Lock()
	s, ok := m.table.Lookup(userID)
	if !ok {
		lock.Unlock()
		return false
	}
	s.Close(CloseReasonKicked)
	released := m.release(ctx, s)
	lock.Unlock()

	if released {
		m.finish(s)
	}
	return true
}

// release moves s to closing and drops it from the table. Callers hold the user lock.
func (m *Manager) release(ctx context.Context, s *Session) bool {
	if !s.transition(StateClosing, StateOpen, StateConnecting) {
		return false
	}
	if m.table.Unregister(s.UserID, s) {
		m.writePresence(ctx, s.UserID, store.StatusOffline)
	}
	return true
}

func (m *Manager) finish(s *Session) {
	s.Close("closed")
	s.transition(StateClosed, StateClosing)
	m.log.Debug().Int64("user_id", s.UserID).Str("session_id", s.ID).Int("online", m.table.Len()).Msg("session disconnected")
}

// Deliver pushes ev to the receiver's live session. Delivery is best-effort:
// it returns false when the receiver is offline or the push failed, never an error.
func (m *Manager) Deliver(ctx context.Context, receiverID int64, ev *Event) bool {
	s, ok := m.table.Lookup(receiverID)
	if !ok {
		m.log.Debug().Int64("receiver_id", receiverID).Msg("receiver offline, stored only")
		return false
	}

	if err := s.Push(ctx, ev, m.deliveryTimeout); err != nil {
		m.log.Warn().Err(err).Int64("receiver_id", receiverID).Str("session_id", s.ID).Msg("live delivery failed")
		return false
	}
	return true
}

// Lookup returns the live session for userID.
func (m *Manager) Lookup(userID int64) (*Session, bool) {
	return m.table.Lookup(userID)
}

// Online returns ids of users connected to this process.
func (m *Manager) Online() []int64 {
	return m.table.Online()
}

// CloseAll asks every live session to close. Transports finish the disconnect.
func (m *Manager) CloseAll(reason string) int {
	sessions := m.table.Sessions()
	for _, s := range sessions {
		s.Close(reason)
	}
	return len(sessions)
}

func (m *Manager) writePresence(ctx context.Context, userID int64, status store.PresenceStatus) {
	if m.presence == nil {
		return
	}
	if err := m.presence.UpdatePresence(ctx, userID, status, m.now().UTC()); err != nil {
		m.log.Error().Err(err).Int64("user_id", userID).Str("status", string(status)).Msg("failed to persist presence")
	}
}

func (m *Manager) userLock(userID int64) *sync.Mutex {
	return &m.userLocks[uint64(userID)%userLockStripes]
}
