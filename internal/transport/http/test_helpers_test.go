package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-dm/internal/config"
	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/store"
	"github.com/vovakirdan/wirechat-dm/internal/store/sqlite"
	"github.com/vovakirdan/wirechat-dm/internal/store/storetest"
)

type testServer struct {
	*httptest.Server
	store   store.Store
	manager *core.Manager
	router  *core.Router
	users   []*store.User
}

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		return sqlite.Migrate(db)
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func startTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.Session.DeliveryTimeout = 200 * time.Millisecond
	cfg.Session.WriteTimeout = time.Second
	for _, fn := range mutate {
		fn(&cfg)
	}

	st := createTestStore(t)
	users := []*store.User{
		storetest.MustCreateUser(t, st, "sarah"),
		storetest.MustCreateUser(t, st, "michael"),
	}

	manager := core.NewManager(st, cfg.Session.DeliveryTimeout, nil)
	router := core.NewRouter(st, manager, nil)

	server := NewServer(manager, router, st, nil, cfg, nil)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		manager.CloseAll(core.CloseReasonShutdown)
		ts.Close()
	})

	return &testServer{Server: ts, store: st, manager: manager, router: router, users: users}
}

func (s *testServer) dial(t *testing.T, ctx context.Context, userID int64) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(s.URL, "http", "ws", 1) + "/ws/" + itoa(userID)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial user %d: %v", userID, err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (s *testServer) waitOnline(t *testing.T, userID int64) *core.Session {
	t.Helper()

	var session *core.Session
	waitFor(t, "user "+itoa(userID)+" online", func() bool {
		var ok bool
		session, ok = s.manager.Lookup(userID)
		return ok
	})
	return session
}

// readFrame reads one frame as a generic map so tests can check which shape arrived.
func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) map[string]any {
	t.Helper()

	var frame map[string]any
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func mustErrorCode(t *testing.T, frame map[string]any, code string) {
	t.Helper()

	errObj, ok := frame["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error frame, got %v", frame)
	}
	if errObj["code"] != code {
		t.Fatalf("expected error code %q, got %v", code, errObj["code"])
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var buf strings.Builder
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, []byte(buf.String())
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()

	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
