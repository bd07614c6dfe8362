package core

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-dm/internal/store"
	"github.com/vovakirdan/wirechat-dm/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestStore(t *testing.T) store.Store {
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

type presenceCall struct {
	UserID int64
	Status store.PresenceStatus
}

// fakePresence records presence writes.
type fakePresence struct {
	mu    sync.Mutex
	calls []presenceCall
	err   error
}

func (f *fakePresence) UpdatePresence(_ context.Context, userID int64, status store.PresenceStatus, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, presenceCall{UserID: userID, Status: status})
	return f.err
}

func (f *fakePresence) snapshot() []presenceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]presenceCall(nil), f.calls...)
}

// failingMessages fails every write.
type failingMessages struct {
	store.MessageStore
}

var errDiskFull = errors.New("disk full")

func (failingMessages) SaveMessage(context.Context, *store.Message) error { return errDiskFull }

func (failingMessages) MarkRead(context.Context, int64, int64) error { return errDiskFull }

// recordingDeliverer counts Deliver calls.
type recordingDeliverer struct {
	mu     sync.Mutex
	events []*Event
}

func (d *recordingDeliverer) Deliver(_ context.Context, _ int64, ev *Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return true
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}
