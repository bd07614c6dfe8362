package presence

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

type recordingWriter struct {
	calls []store.PresenceStatus
	err   error
}

func (r *recordingWriter) UpdatePresence(_ context.Context, _ int64, status store.PresenceStatus, _ time.Time) error {
	r.calls = append(r.calls, status)
	return r.err
}

func TestFanoutWritesAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	first := &recordingWriter{err: boom}
	second := &recordingWriter{}

	err := Fanout{first, nil, second}.UpdatePresence(context.Background(), 1, store.StatusOnline, time.Now())
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to wrap boom, got %v", err)
	}
	if len(first.calls) != 1 || len(second.calls) != 1 {
		t.Fatalf("expected every writer to be called once: %v %v", first.calls, second.calls)
	}
}

func TestFanoutEmptyIsNoop(t *testing.T) {
	if err := (Fanout{}).UpdatePresence(context.Background(), 1, store.StatusOffline, time.Now()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

// Runs only when WIRECHAT_TEST_REDIS_URL points at a disposable Redis.
func TestRedisMirrorRoundTrip(t *testing.T) {
	url := os.Getenv("WIRECHAT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("WIRECHAT_TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()

	prefix := "test:" + uuid.NewString() + ":"
	mirror := NewRedisMirror(rdb, prefix)
	t.Cleanup(func() {
		keys, _ := rdb.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
	})

	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := mirror.UpdatePresence(ctx, 7, store.StatusOnline, at); err != nil {
		t.Fatalf("online: %v", err)
	}

	online, err := mirror.Online(ctx)
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if !slices.Contains(online, int64(7)) {
		t.Fatalf("expected user 7 online, got %v", online)
	}

	if err := mirror.UpdatePresence(ctx, 7, store.StatusOffline, at.Add(time.Minute)); err != nil {
		t.Fatalf("offline: %v", err)
	}
	snap, err := mirror.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Status != store.StatusOffline || !snap.LastSeen.Equal(at.Add(time.Minute)) {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	online, err = mirror.Online(ctx)
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if slices.Contains(online, int64(7)) {
		t.Fatalf("expected user 7 offline, got %v", online)
	}
}
