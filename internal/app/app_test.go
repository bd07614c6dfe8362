package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-dm/internal/config"
	logpkg "github.com/vovakirdan/wirechat-dm/internal/log"
)

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenStore(config.DatabaseConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestAppRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "chat.db")
	cfg.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := New(ctx, cfg, logpkg.Nop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("app did not stop after cancel")
	}
}

func TestNewFailsOnUnreachableRedis(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "chat.db")
	cfg.Redis.URL = "not-a-redis-url"

	if _, err := New(context.Background(), cfg, logpkg.Nop()); err == nil {
		t.Fatalf("expected invalid redis url to fail")
	}
}
