package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// Deliverer pushes events to a user's live connection.
type Deliverer interface {
	Deliver(ctx context.Context, receiverID int64, ev *Event) bool
}

// Router persists inbound direct messages and hands them to live delivery.
// It also owns the read-state transitions of stored messages.
type Router struct {
	messages  store.MessageStore
	deliverer Deliverer
	log       *zerolog.Logger
	now       func() time.Time
}

// NewRouter creates a router.
func NewRouter(messages store.MessageStore, deliverer Deliverer, logger *zerolog.Logger) *Router {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Router{
		messages:  messages,
		deliverer: deliverer,
		log:       logger,
		now:       time.Now,
	}
}

// HandleInbound stores a message from senderID to receiverID and then tries to push it live.
// Nothing is delivered unless the message was persisted first.
func (r *Router) HandleInbound(ctx context.Context, senderID, receiverID int64, content string) (*store.Message, error) {
	if receiverID <= 0 {
		return nil, fmt.Errorf("%w: receiver_id must be positive", ErrBadRequest)
	}

	msg := &store.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  r.now().UTC(),
		Read:       false,
	}
	if err := r.messages.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	delivered := r.deliverer.Deliver(ctx, receiverID, &Event{
		Kind:      EventDirectMessage,
		SenderID:  senderID,
		Content:   content,
		Timestamp: msg.Timestamp,
	})

	r.log.Debug().
		Int64("message_id", msg.ID).
		Int64("sender_id", senderID).
		Int64("receiver_id", receiverID).
		Bool("delivered", delivered).
		Msg("message routed")

	return msg, nil
}

// History returns the conversation between a and b ordered by timestamp.
func (r *Router) History(ctx context.Context, a, b int64) ([]*store.Message, error) {
	msgs, err := r.messages.ListConversation(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return msgs, nil
}

// MarkRead marks every unread message from senderID to readerID as read. Idempotent.
func (r *Router) MarkRead(ctx context.Context, readerID, senderID int64) error {
	if err := r.messages.MarkRead(ctx, readerID, senderID); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Unread returns unread counts for readerID keyed by sender.
func (r *Router) Unread(ctx context.Context, readerID int64) (map[int64]int, error) {
	counts, err := r.messages.CountUnread(ctx, readerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return counts, nil
}
