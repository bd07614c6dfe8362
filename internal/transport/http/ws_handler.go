package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/config"
	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/proto"
)

// StatusReplaced is sent to a connection displaced by a newer one for the same user.
const StatusReplaced websocket.StatusCode = 4000

var (
	errSessionClosed = errors.New("session closed by server")
	errIdleTimeout   = errors.New("idle timeout")
)

// WSHandler upgrades HTTP connections and bridges them to core.Session.
type WSHandler struct {
	manager *core.Manager
	router  *core.Router
	cfg     config.SessionConfig
	log     *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(manager *core.Manager, router *core.Router, cfg config.SessionConfig, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		manager: manager,
		router:  router,
		cfg:     cfg,
		log:     logger,
	}
}

// ServeHTTP serves GET /ws/{user_id}. Invalid ids are rejected before the upgrade.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r.PathValue("user_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}
	h.serve(w, r, userID)
}

func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	session := core.NewSession(userID, h.cfg.SendBuffer)
	logger := h.log.With().Int64("user_id", userID).Str("session_id", session.ID).Logger()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := h.manager.Connect(ctx, session); err != nil {
		logger.Error().Err(err).Msg("failed to open session")
		conn.Close(websocket.StatusInternalError, "session unavailable")
		return
	}
	logger.Info().Msg("ws connected")

	activity := &activityClock{}
	activity.touch()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session, activity, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session, activity, &logger)
	}()

	err = <-errCh

	// Close while the read loop is still running so the close handshake completes.
	// The session is closed first so deliveries fail fast during the handshake.
	status, reason := closeStatus(session, err)
	if status == websocket.StatusInternalError {
		logger.Warn().Err(err).Msg("ws connection closed with error")
	}
	session.Close(reason)
	conn.Close(status, reason)

	cancel() // stop the other goroutine
	<-errCh

	// The request context is done by now; the offline write must still complete.
	h.manager.Disconnect(context.WithoutCancel(r.Context()), session)
	logger.Info().Str("reason", reason).Int("status", int(status)).Msg("ws disconnected")
}

// readLoop handles one frame at a time until the connection fails.
// Bad frames are answered with an error frame and do not end the loop.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, activity *activityClock, logger *zerolog.Logger) error {
	limiter := newRateLimiter(h.cfg.RateLimit)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		activity.touch()

		if !limiter.allow() {
			h.reply(ctx, session, core.ErrorEvent(core.ErrCodeRateLimited, "too many messages"), logger)
			continue
		}

		inbound, protoErr := proto.DecodeInbound(data)
		if protoErr != nil {
			logger.Debug().Str("code", protoErr.Code).Msg(protoErr.Msg)
			h.reply(ctx, session, core.ErrorEvent(protoErr.Code, protoErr.Msg), logger)
			continue
		}

		if _, err := h.router.HandleInbound(ctx, session.UserID, inbound.ReceiverID, inbound.Content); err != nil {
			code := core.ErrCodeStoreUnavailable
			if errors.Is(err, core.ErrBadRequest) {
				code = core.ErrCodeBadRequest
			}
			logger.Error().Err(err).Int64("receiver_id", inbound.ReceiverID).Msg("failed to handle inbound message")
			h.reply(ctx, session, core.ErrorEvent(code, "message was not sent"), logger)
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, activity *activityClock, logger *zerolog.Logger) error {
	var ping <-chan time.Time
	if h.cfg.PingInterval > 0 {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case event := <-session.Events():
			if err := h.write(ctx, conn, outboundFromEvent(event)); err != nil {
				logger.Error().Err(err).Msg("write ws event")
				return err
			}
		case <-ping:
			if h.cfg.IdleTimeout > 0 && activity.since() > h.cfg.IdleTimeout {
				return errIdleTimeout
			}
			pingCtx, cancel := h.writeContext(ctx)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
			activity.touch()
		case <-session.Done():
			return errSessionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, v any) error {
	writeCtx, cancel := h.writeContext(ctx)
	defer cancel()
	return wsjson.Write(writeCtx, conn, v)
}

func (h *WSHandler) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.cfg.WriteTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.cfg.WriteTimeout)
}

// reply queues a frame for the sender's own connection.
func (h *WSHandler) reply(ctx context.Context, session *core.Session, ev *core.Event, logger *zerolog.Logger) {
	if err := session.Push(ctx, ev, h.cfg.DeliveryTimeout); err != nil {
		logger.Warn().Err(err).Msg("failed to queue error frame")
	}
}

// closeStatus picks the close code sent to the peer.
func closeStatus(session *core.Session, err error) (websocket.StatusCode, string) {
	switch session.CloseReason() {
	case core.CloseReasonReplaced:
		return StatusReplaced, "replaced"
	case core.CloseReasonKicked, core.CloseReasonShutdown:
		return websocket.StatusGoingAway, session.CloseReason()
	}

	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, errIdleTimeout):
		return websocket.StatusPolicyViolation, "idle timeout"
	case errors.Is(err, errSessionClosed):
		return websocket.StatusGoingAway, "closing"
	}

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return websocket.StatusNormalClosure, "closing"
	case websocket.StatusMessageTooBig:
		return websocket.StatusMessageTooBig, "message too big"
	case -1:
		return websocket.StatusInternalError, "internal error"
	default:
		return websocket.StatusNormalClosure, "closing"
	}
}

// activityClock records the last time the peer showed signs of life.
type activityClock struct {
	last atomic.Int64
}

func (a *activityClock) touch() {
	a.last.Store(time.Now().UnixNano())
}

func (a *activityClock) since() time.Duration {
	return time.Since(time.Unix(0, a.last.Load()))
}

// pathUserID parses :user_id and answers 400 when it is not a positive integer.
func pathUserID(c *gin.Context) (int64, bool) {
	raw := c.Param("user_id")
	id, err := parseID(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}
