package gormstore

import (
	"time"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

type userModel struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Name     string `gorm:"size:255;not null"`
	Email    string `gorm:"size:255;not null;uniqueIndex"`
	Avatar   string `gorm:"size:1024;not null"`
	Status   string `gorm:"size:16;not null"`
	LastSeen *time.Time
}

func (userModel) TableName() string { return "users" }

type messageModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	SenderID   int64     `gorm:"not null;index:idx_messages_pair,priority:1"`
	ReceiverID int64     `gorm:"not null;index:idx_messages_pair,priority:2;index:idx_messages_unread,priority:1"`
	Content    string    `gorm:"type:text;not null"`
	Timestamp  time.Time `gorm:"not null;index:idx_messages_pair,priority:3"`
	Read       bool      `gorm:"column:read;not null;index:idx_messages_unread,priority:2"`
}

func (messageModel) TableName() string { return "messages" }

func userFromModel(m *userModel) *store.User {
	return &store.User{
		ID:       m.ID,
		Name:     m.Name,
		Email:    m.Email,
		Avatar:   m.Avatar,
		Status:   store.PresenceStatus(m.Status),
		LastSeen: m.LastSeen,
	}
}

func messageFromModel(m *messageModel) *store.Message {
	return &store.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Timestamp:  m.Timestamp,
		Read:       m.Read,
	}
}
