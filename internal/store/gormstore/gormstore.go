// Package gormstore implements store.Store on gorm for the postgres and mysql backends.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// Store implements store.Store using gorm.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to the named driver ("postgres" or "mysql") and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}
	return New(dialector)
}

// New opens a store on an arbitrary dialector and migrates the schema.
func New(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.AutoMigrate(&userModel{}, &messageModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ==== UserStore implementation ====

// CreateUser inserts a user and sets its ID.
func (s *Store) CreateUser(ctx context.Context, user *store.User) error {
	if user.Status == "" {
		user.Status = store.StatusOffline
	}
	m := userModel{
		Name:     user.Name,
		Email:    user.Email,
		Avatar:   user.Avatar,
		Status:   string(user.Status),
		LastSeen: user.LastSeen,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = m.ID
	return nil
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	var m userModel
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return userFromModel(&m), nil
}

// ListUsers returns all users in insertion order.
func (s *Store) ListUsers(ctx context.Context) ([]*store.User, error) {
	var models []userModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	users := make([]*store.User, 0, len(models))
	for i := range models {
		users = append(users, userFromModel(&models[i]))
	}
	return users, nil
}

// CountUsers returns the number of stored users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&userModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// UpdatePresence sets status and last_seen. Unknown users are ignored.
func (s *Store) UpdatePresence(ctx context.Context, userID int64, status store.PresenceStatus, lastSeen time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&userModel{}).
		Where("id = ?", userID).
		Updates(map[string]any{"status": string(status), "last_seen": lastSeen.UTC()}).
		Error
	if err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	return nil
}

// ==== MessageStore implementation ====

// SaveMessage appends a message and sets its ID.
func (s *Store) SaveMessage(ctx context.Context, msg *store.Message) error {
	m := messageModel{
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		Timestamp:  msg.Timestamp.UTC(),
		Read:       msg.Read,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	msg.ID = m.ID
	return nil
}

// ListConversation returns the messages exchanged between a and b in either direction.
func (s *Store) ListConversation(ctx context.Context, a, b int64) ([]*store.Message, error) {
	var models []messageModel
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "timestamp"}},
			{Column: clause.Column{Name: "id"}},
		}}).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	messages := make([]*store.Message, 0, len(models))
	for i := range models {
		messages = append(messages, messageFromModel(&models[i]))
	}
	return messages, nil
}

// MarkRead flags all unread messages from senderID to readerID as read in one statement.
func (s *Store) MarkRead(ctx context.Context, readerID, senderID int64) error {
	err := s.db.WithContext(ctx).
		Model(&messageModel{}).
		Where(map[string]any{"sender_id": senderID, "receiver_id": readerID, "read": false}).
		Update("read", true).
		Error
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// CountUnread returns unread message counts for readerID keyed by sender.
func (s *Store) CountUnread(ctx context.Context, readerID int64) (map[int64]int, error) {
	var rows []struct {
		SenderID int64
		Unread   int
	}
	err := s.db.WithContext(ctx).
		Model(&messageModel{}).
		Select("sender_id, COUNT(*) AS unread").
		Where(map[string]any{"receiver_id": readerID, "read": false}).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query unread: %w", err)
	}

	counts := make(map[int64]int, len(rows))
	for _, r := range rows {
		counts[r.SenderID] = r.Unread
	}
	return counts, nil
}
