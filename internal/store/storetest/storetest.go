// Package storetest holds behaviour checks shared by every store.Store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// Factory returns a fresh, empty, migrated store.
type Factory func(t *testing.T) store.Store

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("CreateAndListUsers", func(t *testing.T) { testCreateAndListUsers(t, newStore(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("GetUnknownUser", func(t *testing.T) { testGetUnknownUser(t, newStore(t)) })
	t.Run("UpdatePresence", func(t *testing.T) { testUpdatePresence(t, newStore(t)) })
	t.Run("ConversationOrderAndFilter", func(t *testing.T) { testConversation(t, newStore(t)) })
	t.Run("MarkReadIdempotent", func(t *testing.T) { testMarkRead(t, newStore(t)) })
	t.Run("CountUnread", func(t *testing.T) { testCountUnread(t, newStore(t)) })
	t.Run("Seed", func(t *testing.T) { testSeed(t, newStore(t)) })
}

// MustCreateUser inserts a user with a unique email derived from name.
func MustCreateUser(t *testing.T, st store.UserStore, name string) *store.User {
	t.Helper()

	u := &store.User{Name: name, Email: name + "@example.com", Avatar: "https://placehold.co/100"}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func mustSave(t *testing.T, st store.MessageStore, from, to int64, content string, ts time.Time) *store.Message {
	t.Helper()

	msg := &store.Message{SenderID: from, ReceiverID: to, Content: content, Timestamp: ts}
	if err := st.SaveMessage(context.Background(), msg); err != nil {
		t.Fatalf("save message: %v", err)
	}
	if msg.ID == 0 {
		t.Fatalf("expected message id to be assigned")
	}
	return msg
}

func testCreateAndListUsers(t *testing.T, st store.Store) {
	ctx := context.Background()
	names := []string{"sarah", "michael", "emily"}
	for _, n := range names {
		MustCreateUser(t, st, n)
	}

	users, err := st.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != len(names) {
		t.Fatalf("expected %d users, got %d", len(names), len(users))
	}
	for i, u := range users {
		if u.Name != names[i] {
			t.Errorf("expected %s at index %d, got %s", names[i], i, u.Name)
		}
		if u.Status != store.StatusOffline {
			t.Errorf("expected new user offline, got %q", u.Status)
		}
	}

	got, err := st.GetUserByID(ctx, users[1].ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Email != "michael@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func testDuplicateEmail(t *testing.T, st store.Store) {
	MustCreateUser(t, st, "sarah")

	err := st.CreateUser(context.Background(), &store.User{Name: "other", Email: "sarah@example.com"})
	if !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func testGetUnknownUser(t *testing.T, st store.Store) {
	if _, err := st.GetUserByID(context.Background(), 4242); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testUpdatePresence(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := MustCreateUser(t, st, "sarah")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := st.UpdatePresence(ctx, u.ID, store.StatusOnline, at); err != nil {
		t.Fatalf("update presence: %v", err)
	}

	got, err := st.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Status != store.StatusOnline {
		t.Fatalf("expected online, got %q", got.Status)
	}
	if got.LastSeen == nil || !got.LastSeen.Equal(at) {
		t.Fatalf("expected last_seen %v, got %v", at, got.LastSeen)
	}

	// Unknown users are ignored rather than reported.
	if err := st.UpdatePresence(ctx, 9999, store.StatusOffline, at); err != nil {
		t.Fatalf("expected no error for unknown user, got %v", err)
	}
}

func testConversation(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := MustCreateUser(t, st, "a")
	b := MustCreateUser(t, st, "b")
	c := MustCreateUser(t, st, "c")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Inserted out of order on purpose.
	mustSave(t, st, b.ID, a.ID, "second", base.Add(2*time.Second))
	mustSave(t, st, a.ID, b.ID, "first", base.Add(time.Second))
	mustSave(t, st, a.ID, c.ID, "other pair", base)
	mustSave(t, st, c.ID, b.ID, "other pair too", base)
	mustSave(t, st, a.ID, b.ID, "third", base.Add(3*time.Second+500*time.Millisecond))

	for _, pair := range [][2]int64{{a.ID, b.ID}, {b.ID, a.ID}} {
		msgs, err := st.ListConversation(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("list conversation: %v", err)
		}
		want := []string{"first", "second", "third"}
		if len(msgs) != len(want) {
			t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
		}
		for i, m := range msgs {
			if m.Content != want[i] {
				t.Errorf("expected %q at %d, got %q", want[i], i, m.Content)
			}
			if i > 0 && m.Timestamp.Before(msgs[i-1].Timestamp) {
				t.Errorf("messages out of order at %d", i)
			}
			if m.Read {
				t.Errorf("new message must be unread")
			}
		}
	}

	empty, err := st.ListConversation(ctx, b.ID, 777)
	if err != nil {
		t.Fatalf("list conversation: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no messages, got %d", len(empty))
	}
}

func testMarkRead(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := MustCreateUser(t, st, "a")
	b := MustCreateUser(t, st, "b")
	now := time.Now().UTC()

	mustSave(t, st, a.ID, b.ID, "one", now)
	mustSave(t, st, a.ID, b.ID, "two", now.Add(time.Millisecond))
	mustSave(t, st, b.ID, a.ID, "reply", now.Add(2*time.Millisecond))

	snapshot := func() map[string]bool {
		msgs, err := st.ListConversation(ctx, a.ID, b.ID)
		if err != nil {
			t.Fatalf("list conversation: %v", err)
		}
		out := make(map[string]bool, len(msgs))
		for _, m := range msgs {
			out[m.Content] = m.Read
		}
		return out
	}

	if err := st.MarkRead(ctx, b.ID, a.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	first := snapshot()
	if !first["one"] || !first["two"] {
		t.Fatalf("expected messages from a to b read: %v", first)
	}
	if first["reply"] {
		t.Fatalf("message from b to a must stay unread: %v", first)
	}

	if err := st.MarkRead(ctx, b.ID, a.ID); err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	second := snapshot()
	for k, v := range first {
		if second[k] != v {
			t.Fatalf("second mark-read changed state of %q: %v -> %v", k, v, second[k])
		}
	}
}

func testCountUnread(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := MustCreateUser(t, st, "a")
	b := MustCreateUser(t, st, "b")
	c := MustCreateUser(t, st, "c")
	now := time.Now().UTC()

	mustSave(t, st, a.ID, c.ID, "x", now)
	mustSave(t, st, a.ID, c.ID, "y", now)
	mustSave(t, st, b.ID, c.ID, "z", now)
	mustSave(t, st, c.ID, a.ID, "not for c", now)

	counts, err := st.CountUnread(ctx, c.ID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if counts[a.ID] != 2 || counts[b.ID] != 1 || len(counts) != 2 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	if err := st.MarkRead(ctx, c.ID, a.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	counts, err = st.CountUnread(ctx, c.ID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if _, ok := counts[a.ID]; ok || counts[b.ID] != 1 {
		t.Fatalf("unexpected counts after mark read: %v", counts)
	}
}

func testSeed(t *testing.T, st store.Store) {
	ctx := context.Background()

	n, err := store.Seed(ctx, st)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != len(store.DemoUsers) {
		t.Fatalf("expected %d seeded users, got %d", len(store.DemoUsers), n)
	}

	n, err = store.Seed(ctx, st)
	if err != nil {
		t.Fatalf("seed again: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected second seed to be a no-op, got %d", n)
	}
}
