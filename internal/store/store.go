package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when creating a user with an email already taken.
	ErrDuplicateEmail = errors.New("email already registered")
)

// PresenceStatus is the coarse online state persisted per user.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// User represents a chat participant.
type User struct {
	ID       int64
	Name     string
	Email    string
	Avatar   string
	Status   PresenceStatus
	LastSeen *time.Time
}

// Message represents a persisted direct message. Only Read changes after creation.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Content    string
	Timestamp  time.Time
	Read       bool
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a user and sets its ID.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// ListUsers returns all users in insertion order.
	ListUsers(ctx context.Context) ([]*User, error)

	// CountUsers returns the number of stored users.
	CountUsers(ctx context.Context) (int64, error)

	// UpdatePresence sets status and last_seen. Unknown users are ignored.
	UpdatePresence(ctx context.Context, userID int64, status PresenceStatus, lastSeen time.Time) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage appends a message and sets its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListConversation returns every message exchanged between a and b, in either
	// direction, ordered by timestamp then id.
	ListConversation(ctx context.Context, a, b int64) ([]*Message, error)

	// MarkRead flags all unread messages from senderID to readerID as read.
	MarkRead(ctx context.Context, readerID, senderID int64) error

	// CountUnread returns unread message counts for readerID keyed by sender.
	CountUnread(ctx context.Context, readerID int64) (map[int64]int, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
