package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-dm/internal/config"
	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/proto"
	"github.com/vovakirdan/wirechat-dm/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response: %d %q", resp.StatusCode, body)
	}
}

func TestWebSocketRejectsInvalidUserID(t *testing.T) {
	ts := startTestServer(t)

	for _, id := range []string{"abc", "0", "-4"} {
		resp, body := ts.do(t, http.MethodGet, "/ws/"+id, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("id %q: expected 400, got %d", id, resp.StatusCode)
		}
		var errResp ErrorResponse
		decodeJSON(t, body, &errResp)
		if errResp.Error != "invalid user id" {
			t.Fatalf("id %q: unexpected body %s", id, body)
		}
	}
	if online := ts.manager.Online(); len(online) != 0 {
		t.Fatalf("rejected upgrades registered sessions: %v", online)
	}
}

func TestWebSocketUpgradeRegistersSession(t *testing.T) {
	ts := startTestServer(t)
	alice := ts.users[0].ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ts.dial(t, ctx, alice)
	session := ts.waitOnline(t, alice)
	if session.State() != core.StateOpen {
		t.Fatalf("expected open session, got %v", session.State())
	}

	user, err := ts.store.GetUserByID(ctx, alice)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Status != store.StatusOnline {
		t.Fatalf("expected alice online in store, got %q", user.Status)
	}
}

func TestWebSocketDeliveryFailsFastWhileClosing(t *testing.T) {
	ts := startTestServer(t, func(cfg *config.Config) {
		cfg.Session.PingInterval = 50 * time.Millisecond
		cfg.Session.IdleTimeout = 100 * time.Millisecond
		cfg.Session.WriteTimeout = 200 * time.Millisecond
	})
	alice := ts.users[0].ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The client never reads, so pings go unanswered and the close handshake stalls.
	ts.dial(t, ctx, alice)
	session := ts.waitOnline(t, alice)

	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the server to close the unresponsive session")
	}

	ev := &core.Event{Kind: core.EventDirectMessage, SenderID: ts.users[1].ID, Content: "anyone?"}
	if ts.manager.Deliver(ctx, alice, ev) {
		t.Fatalf("expected delivery to a closing session to fail")
	}
}

func TestWebSocketDirectMessage(t *testing.T) {
	ts := startTestServer(t)
	alice, bob := ts.users[0].ID, ts.users[1].ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := ts.dial(t, ctx, alice)
	connB := ts.dial(t, ctx, bob)
	ts.waitOnline(t, alice)
	ts.waitOnline(t, bob)

	if err := wsjson.Write(ctx, connA, proto.Inbound{ReceiverID: bob, Content: "hi there"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	var out proto.Outbound
	if err := wsjson.Read(ctx, connB, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	if out.SenderID != alice || out.Content != "hi there" {
		t.Fatalf("unexpected outbound: %+v", out)
	}
	if _, err := time.Parse(time.RFC3339Nano, out.Timestamp); err != nil {
		t.Fatalf("timestamp %q is not RFC3339: %v", out.Timestamp, err)
	}

	user, err := ts.store.GetUserByID(ctx, bob)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Status != store.StatusOnline || user.LastSeen == nil {
		t.Fatalf("expected bob online with last_seen, got %+v", user)
	}
}

func TestWebSocketOfflineReceiverGetsHistory(t *testing.T) {
	ts := startTestServer(t)
	alice, bob := ts.users[0].ID, ts.users[1].ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := ts.dial(t, ctx, alice)
	if err := wsjson.Write(ctx, connA, proto.Inbound{ReceiverID: bob, Content: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	// Frames are handled in order, so once this error arrives the message above is stored.
	if err := connA.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatalf("send bad frame: %v", err)
	}
	mustErrorCode(t, readFrame(t, ctx, connA), proto.CodeInvalidJSON)

	connB := ts.dial(t, ctx, bob)
	ts.waitOnline(t, bob)

	resp, body := ts.do(t, http.MethodGet, "/api/users/"+itoa(bob)+"/messages?other_user_id="+itoa(alice), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %s", resp.StatusCode, body)
	}
	var history []MessageResponse
	decodeJSON(t, body, &history)
	if len(history) != 1 || history[0].Content != "hi" || history[0].Read || history[0].SenderID != alice {
		t.Fatalf("unexpected history: %+v", history)
	}

	// Nothing is replayed on connect.
	readCtx, readCancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer readCancel()
	if _, _, err := connB.Read(readCtx); err == nil {
		t.Fatalf("expected no frame to be pushed on connect")
	}
}

func TestWebSocketBadFramesKeepConnectionOpen(t *testing.T) {
	ts := startTestServer(t)
	alice := ts.users[0].ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := ts.dial(t, ctx, alice)
	ts.waitOnline(t, alice)

	bad := []struct {
		frame string
		code  string
	}{
		{`{"receiver_id": 2`, proto.CodeInvalidJSON},
		{`{"content": "hi"}`, proto.CodeBadRequest},
		{`{"receiver_id": "two", "content": "hi"}`, proto.CodeBadRequest},
	}
	for _, tc := range bad {
		if err := conn.Write(ctx, websocket.MessageText, []byte(tc.frame)); err != nil {
			t.Fatalf("write %s: %v", tc.frame, err)
		}
		mustErrorCode(t, readFrame(t, ctx, conn), tc.code)
	}

	// A message to self still round-trips on the same connection.
	if err := wsjson.Write(ctx, conn, proto.Inbound{ReceiverID: alice, Content: "note to self"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	frame := readFrame(t, ctx, conn)
	if frame["content"] != "note to self" || frame["sender_id"] != float64(alice) {
		t.Fatalf("unexpected frame: %v", frame)
	}
}

func TestWebSocketDuplicateConnectClosesOld(t *testing.T) {
	ts := startTestServer(t)
	alice, bob := ts.users[0].ID, ts.users[1].ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := ts.dial(t, ctx, alice)
	firstSession := ts.waitOnline(t, alice)

	second := ts.dial(t, ctx, alice)
	waitFor(t, "second session registered", func() bool {
		s, ok := ts.manager.Lookup(alice)
		return ok && s != firstSession
	})

	if _, _, err := first.Read(ctx); websocket.CloseStatus(err) != StatusReplaced {
		t.Fatalf("expected close status %d, got %v", StatusReplaced, err)
	}

	// The displaced handler must not mark the user offline.
	waitFor(t, "displaced session closed", func() bool { return firstSession.State() == core.StateClosed })
	user, err := ts.store.GetUserByID(ctx, alice)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Status != store.StatusOnline {
		t.Fatalf("expected alice to stay online, got %q", user.Status)
	}

	// Deliveries go to the newest connection.
	connB := ts.dial(t, ctx, bob)
	if err := wsjson.Write(ctx, connB, proto.Inbound{ReceiverID: alice, Content: "which one?"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	var out proto.Outbound
	if err := wsjson.Read(ctx, second, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	if out.Content != "which one?" || out.SenderID != bob {
		t.Fatalf("unexpected outbound: %+v", out)
	}
}

func TestWebSocketDisconnectMarksOffline(t *testing.T) {
	ts := startTestServer(t)
	alice := ts.users[0].ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := ts.dial(t, ctx, alice)
	ts.waitOnline(t, alice)
	conn.Close(websocket.StatusNormalClosure, "bye")

	waitFor(t, "alice offline", func() bool {
		_, online := ts.manager.Lookup(alice)
		user, err := ts.store.GetUserByID(ctx, alice)
		return !online && err == nil && user.Status == store.StatusOffline
	})
}

func TestKickEndpointClosesSession(t *testing.T) {
	ts := startTestServer(t)
	alice := ts.users[0].ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := ts.dial(t, ctx, alice)
	ts.waitOnline(t, alice)

	resp, body := ts.do(t, http.MethodGet, "/api/presence/online", "")
	var online struct {
		Online []int64 `json:"online"`
	}
	decodeJSON(t, body, &online)
	if resp.StatusCode != http.StatusOK || len(online.Online) != 1 || online.Online[0] != alice {
		t.Fatalf("unexpected online list: %d %s", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodDelete, "/api/sessions/"+itoa(alice), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("kick status %d: %s", resp.StatusCode, body)
	}
	if _, _, err := conn.Read(ctx); websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Fatalf("expected going away close, got %v", err)
	}

	resp, _ = ts.do(t, http.MethodDelete, "/api/sessions/"+itoa(alice), "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for disconnected user, got %d", resp.StatusCode)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	ts := startTestServer(t, func(cfg *config.Config) {
		cfg.Session.RateLimit = 1
	})
	alice, bob := ts.users[0].ID, ts.users[1].ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := ts.dial(t, ctx, alice)
	for _, text := range []string{"one", "two"} {
		if err := wsjson.Write(ctx, conn, proto.Inbound{ReceiverID: bob, Content: text}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	mustErrorCode(t, readFrame(t, ctx, conn), core.ErrCodeRateLimited)

	history, err := ts.router.History(ctx, alice, bob)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Content != "one" {
		t.Fatalf("expected only the first message stored, got %+v", history)
	}
}
