package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// UserHandlers provides HTTP handlers for user operations.
type UserHandlers struct {
	store store.UserStore
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.UserStore, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store: st,
		log:   logger,
	}
}

// CreateUserRequest represents the create user request body.
type CreateUserRequest struct {
	Name   string `json:"name" binding:"required,max=128"`
	Email  string `json:"email" binding:"required,email"`
	Avatar string `json:"avatar"`
}

// ListUsers returns every user with its persisted presence.
// GET /api/users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		response = append(response, userToResponse(u))
	}

	c.JSON(http.StatusOK, response)
}

// CreateUser adds a user profile.
// POST /api/users
func (h *UserHandlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create user request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user := &store.User{
		Name:   strings.TrimSpace(req.Name),
		Email:  strings.ToLower(strings.TrimSpace(req.Email)),
		Avatar: req.Avatar,
		Status: store.StatusOffline,
	}
	if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user with this email already exists"})
			return
		}
		h.log.Error().Err(err).Str("email", user.Email).Msg("failed to create user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("user created")
	c.JSON(http.StatusCreated, userToResponse(user))
}
