package http

import (
	"strconv"
	"time"

	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/proto"
	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Avatar   string  `json:"avatar"`
	Status   string  `json:"status"`
	LastSeen *string `json:"last_seen"`
}

// MessageResponse represents a stored message in API responses.
type MessageResponse struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp"`
	Read       bool   `json:"read"`
}

func userToResponse(u *store.User) UserResponse {
	resp := UserResponse{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
		Status: string(u.Status),
	}
	if u.LastSeen != nil {
		ts := formatTime(*u.LastSeen)
		resp.LastSeen = &ts
	}
	return resp
}

func messageToResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Timestamp:  formatTime(m.Timestamp),
		Read:       m.Read,
	}
}

// unreadToResponse keys counts by sender id as JSON object keys.
func unreadToResponse(counts map[int64]int) map[string]int {
	resp := make(map[string]int, len(counts))
	for sender, n := range counts {
		resp[strconv.FormatInt(sender, 10)] = n
	}
	return resp
}

// outboundFromEvent renders a core event as the frame written to the client.
func outboundFromEvent(event *core.Event) any {
	switch event.Kind {
	case core.EventDirectMessage:
		return proto.Outbound{
			SenderID:  event.SenderID,
			Content:   event.Content,
			Timestamp: formatTime(event.Timestamp),
		}
	case core.EventError:
		code, msg := core.ErrCodeBadRequest, "request rejected"
		if event.Error != nil {
			code, msg = event.Error.Code, event.Error.Message
		}
		return proto.ErrorFrame{Error: &proto.Error{Code: code, Msg: msg}}
	default:
		return proto.ErrorFrame{Error: &proto.Error{Code: "unknown_event", Msg: "unknown event"}}
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
