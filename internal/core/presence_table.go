package core

import (
	"slices"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// PresenceTable maps online user ids to their live session. Safe for concurrent use.
type PresenceTable struct {
	sessions cmap.ConcurrentMap[int64, *Session]
}

// NewPresenceTable constructs an empty table.
func NewPresenceTable() *PresenceTable {
	return &PresenceTable{
		sessions: cmap.NewWithCustomShardingFunction[int64, *Session](shardUserID),
	}
}

func shardUserID(id int64) uint32 {
	u := uint64(id)
	return uint32(u ^ (u >> 32))
}

// Register inserts or replaces the session for userID and returns the displaced one, if any.
func (t *PresenceTable) Register(userID int64, s *Session) (previous *Session) {
	t.sessions.Upsert(userID, s, func(exist bool, inMap, newValue *Session) *Session {
		if exist {
			previous = inMap
		}
		return newValue
	})
	return previous
}

// Unregister removes the entry for userID only if it still points at s.
// Returns true when the entry was removed.
func (t *PresenceTable) Unregister(userID int64, s *Session) bool {
	return t.sessions.RemoveCb(userID, func(_ int64, current *Session, exists bool) bool {
		return exists && current == s
	})
}

// Lookup returns the live session for userID.
func (t *PresenceTable) Lookup(userID int64) (*Session, bool) {
	return t.sessions.Get(userID)
}

// Online returns the ids of all registered users, ascending.
func (t *PresenceTable) Online() []int64 {
	ids := t.sessions.Keys()
	slices.Sort(ids)
	return ids
}

// Sessions returns a snapshot of all registered sessions.
func (t *PresenceTable) Sessions() []*Session {
	items := t.sessions.Items()
	out := make([]*Session, 0, len(items))
	for _, s := range items {
		out = append(out, s)
	}
	return out
}

// Len returns the number of online users.
func (t *PresenceTable) Len() int {
	return t.sessions.Count()
}
