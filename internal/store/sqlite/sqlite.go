package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

const dsnOptions = "_journal_mode=WAL&_busy_timeout=5000"

// Schema creates the users and messages tables. Safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name      TEXT NOT NULL,
	email     TEXT NOT NULL UNIQUE,
	avatar    TEXT NOT NULL DEFAULT '',
	status    TEXT NOT NULL DEFAULT 'offline',
	last_seen DATETIME
);

CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id   INTEGER NOT NULL REFERENCES users(id),
	receiver_id INTEGER NOT NULL REFERENCES users(id),
	content     TEXT NOT NULL,
	timestamp   DATETIME NOT NULL,
	"read"      BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(receiver_id, "read");
`

// Migrate applies Schema to db.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// withDSNOptions appends the driver options, keeping any query already on dbPath.
func withDSNOptions(dbPath string) string {
	switch {
	case strings.HasSuffix(dbPath, "?"), strings.HasSuffix(dbPath, "&"):
		return dbPath + dsnOptions
	case strings.Contains(dbPath, "?"):
		return dbPath + "&" + dsnOptions
	default:
		return dbPath + "?" + dsnOptions
	}
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withDSNOptions(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser inserts a user and sets its ID.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *store.User) error {
	if user.Status == "" {
		user.Status = store.StatusOffline
	}

	query := `
		INSERT INTO users (name, email, avatar, status, last_seen)
		VALUES (?, ?, ?, ?, ?)
	`
	var lastSeen any
	if user.LastSeen != nil {
		lastSeen = user.LastSeen.UTC()
	}

	result, err := s.db.ExecContext(ctx, query, user.Name, user.Email, user.Avatar, user.Status, lastSeen)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	user.ID = id
	return nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, name, email, avatar, status, last_seen
		FROM users
		WHERE id = ?
	`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return user, nil
}

// ListUsers returns all users in insertion order.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	query := `
		SELECT id, name, email, avatar, status, last_seen
		FROM users
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// CountUsers returns the number of stored users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// UpdatePresence sets status and last_seen. Unknown users are ignored.
func (s *SQLiteStore) UpdatePresence(ctx context.Context, userID int64, status store.PresenceStatus, lastSeen time.Time) error {
	query := `
		UPDATE users
		SET status = ?, last_seen = ?
		WHERE id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, status, lastSeen.UTC(), userID); err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	return nil
}

// ==== MessageStore implementation ====

// SaveMessage appends a message and sets its ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (sender_id, receiver_id, content, timestamp, "read")
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.SenderID, msg.ReceiverID, msg.Content, msg.Timestamp.UTC(), msg.Read)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListConversation returns the messages exchanged between a and b in either direction.
func (s *SQLiteStore) ListConversation(ctx context.Context, a, b int64) ([]*store.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, timestamp, "read"
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?)
		   OR (sender_id = ? AND receiver_id = ?)
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, a, b, b, a)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Timestamp, &msg.Read); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// MarkRead flags all unread messages from senderID to readerID as read in one statement.
func (s *SQLiteStore) MarkRead(ctx context.Context, readerID, senderID int64) error {
	query := `
		UPDATE messages
		SET "read" = 1
		WHERE sender_id = ? AND receiver_id = ? AND "read" = 0
	`
	if _, err := s.db.ExecContext(ctx, query, senderID, readerID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// CountUnread returns unread message counts for readerID keyed by sender.
func (s *SQLiteStore) CountUnread(ctx context.Context, readerID int64) (map[int64]int, error) {
	query := `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = ? AND "read" = 0
		GROUP BY sender_id
	`
	rows, err := s.db.QueryContext(ctx, query, readerID)
	if err != nil {
		return nil, fmt.Errorf("query unread: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var sender int64
		var n int
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, fmt.Errorf("scan unread: %w", err)
		}
		counts[sender] = n
	}

	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*store.User, error) {
	var user store.User
	var lastSeen sql.NullTime
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Avatar, &user.Status, &lastSeen); err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		user.LastSeen = &t
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
