package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/core"
)

// MessageHandlers exposes conversation history and read state.
type MessageHandlers struct {
	router *core.Router
	log    *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(router *core.Router, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		router: router,
		log:    logger,
	}
}

// MarkReadRequest identifies which messages to mark read.
// Values may come from the query string or a JSON body.
type MarkReadRequest struct {
	UserID   int64 `form:"user_id" json:"user_id"`
	SenderID int64 `form:"sender_id" json:"sender_id"`
}

// History returns the conversation between the path user and other_user_id.
// GET /api/users/:user_id/messages?other_user_id=N
func (h *MessageHandlers) History(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	otherID, err := parseID(c.Query("other_user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "other_user_id is required"})
		return
	}

	messages, err := h.router.History(c.Request.Context(), userID, otherID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Int64("other_user_id", otherID).Msg("failed to load history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, messageToResponse(m))
	}

	c.JSON(http.StatusOK, response)
}

// Unread returns unread counts keyed by sender id.
// GET /api/users/:user_id/unread
func (h *MessageHandlers) Unread(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	counts, err := h.router.Unread(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to count unread messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, unreadToResponse(counts))
}

// MarkRead marks every message from sender_id to user_id as read.
// POST /api/messages/mark-read?user_id=R&sender_id=S
func (h *MessageHandlers) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query parameters"})
		return
	}
	if (req.UserID == 0 || req.SenderID == 0) && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}
	if req.UserID <= 0 || req.SenderID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user_id and sender_id are required"})
		return
	}

	if err := h.router.MarkRead(c.Request.Context(), req.UserID, req.SenderID); err != nil {
		h.log.Error().Err(err).Int64("user_id", req.UserID).Int64("sender_id", req.SenderID).Msg("failed to mark messages read")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Debug().Int64("user_id", req.UserID).Int64("sender_id", req.SenderID).Msg("messages marked read")
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
