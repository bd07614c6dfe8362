package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/config"
	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// NewServer builds the HTTP server with REST and WebSocket routes.
// mirror may be nil.
//
// WebSocket upgrades bypass gin: its response writer refuses to hijack
// once the upgrade headers are flushed.
func NewServer(manager *core.Manager, router *core.Router, users store.UserStore, mirror PresenceMirror, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("GET /ws/{user_id}", NewWSHandler(manager, router, cfg.Session, logger))
	mux.Handle("/", NewEngine(manager, router, users, mirror, cfg, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewEngine wires the REST handlers into a gin engine.
func NewEngine(manager *core.Manager, router *core.Router, users store.UserStore, mirror PresenceMirror, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(CORSMiddleware(cfg.AllowedOrigins))
	engine.Use(LoggerMiddleware(logger))

	userHandlers := NewUserHandlers(users, logger)
	messageHandlers := NewMessageHandlers(router, logger)
	sessionHandlers := NewSessionHandlers(manager, users, mirror, logger)

	engine.GET("/health", healthHandler)

	api := engine.Group("/api")
	{
		api.GET("/users", userHandlers.ListUsers)
		api.POST("/users", userHandlers.CreateUser)
		api.GET("/users/:user_id/messages", messageHandlers.History)
		api.GET("/users/:user_id/unread", messageHandlers.Unread)
		api.GET("/users/:user_id/presence", sessionHandlers.Presence)
		api.POST("/messages/mark-read", messageHandlers.MarkRead)

		api.GET("/presence/online", sessionHandlers.Online)
		api.DELETE("/sessions/:user_id", sessionHandlers.Kick)
	}

	return engine
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
