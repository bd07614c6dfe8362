package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/presence"
	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// PresenceMirror reads presence copied out of the database.
type PresenceMirror interface {
	Online(ctx context.Context) ([]int64, error)
	Get(ctx context.Context, userID int64) (*presence.Snapshot, error)
}

// SessionHandlers exposes live connection state of this node.
type SessionHandlers struct {
	manager *core.Manager
	users   store.UserStore
	mirror  PresenceMirror
	log     *zerolog.Logger
}

// NewSessionHandlers creates a new session handlers instance. mirror may be nil.
func NewSessionHandlers(manager *core.Manager, users store.UserStore, mirror PresenceMirror, logger *zerolog.Logger) *SessionHandlers {
	return &SessionHandlers{
		manager: manager,
		users:   users,
		mirror:  mirror,
		log:     logger,
	}
}

// PresenceResponse is the presence of one user.
// Connected reports a live session on this node; Source names where Status was read.
type PresenceResponse struct {
	UserID    int64   `json:"user_id"`
	Status    string  `json:"status"`
	LastSeen  *string `json:"last_seen"`
	Connected bool    `json:"connected"`
	Source    string  `json:"source"`
}

// OnlineResponse lists connected users. Mirrored is set only when a presence mirror is configured.
type OnlineResponse struct {
	Online   []int64 `json:"online"`
	Mirrored []int64 `json:"mirrored,omitempty"`
}

// Online lists ids of users connected to this node.
// GET /api/presence/online
func (h *SessionHandlers) Online(c *gin.Context) {
	resp := OnlineResponse{Online: h.manager.Online()}

	if h.mirror != nil {
		mirrored, err := h.mirror.Online(c.Request.Context())
		if err != nil {
			h.log.Warn().Err(err).Msg("failed to read presence mirror")
		} else {
			resp.Mirrored = mirrored
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Presence reports one user's status, preferring the mirror and falling back to the database.
// GET /api/users/:user_id/presence
func (h *SessionHandlers) Presence(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	_, connected := h.manager.Lookup(userID)

	if h.mirror != nil {
		snap, err := h.mirror.Get(ctx, userID)
		if err == nil {
			c.JSON(http.StatusOK, presenceResponse(userID, string(snap.Status), snap.LastSeen, connected, "mirror"))
			return
		}
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to read presence mirror")
	}

	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	var lastSeen time.Time
	if user.LastSeen != nil {
		lastSeen = *user.LastSeen
	}
	c.JSON(http.StatusOK, presenceResponse(userID, string(user.Status), lastSeen, connected, "store"))
}

func presenceResponse(userID int64, status string, lastSeen time.Time, connected bool, source string) PresenceResponse {
	resp := PresenceResponse{UserID: userID, Status: status, Connected: connected, Source: source}
	if !lastSeen.IsZero() {
		ts := formatTime(lastSeen)
		resp.LastSeen = &ts
	}
	return resp
}

// Kick force-closes a user's live connection.
// DELETE /api/sessions/:user_id
func (h *SessionHandlers) Kick(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	if !h.manager.DisconnectUser(c.Request.Context(), userID) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user is not connected"})
		return
	}

	h.log.Info().Int64("user_id", userID).Msg("session closed by request")
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}
