package presence

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

const onlineSetKey = "online_users"

// Snapshot is the cached presence of one user.
type Snapshot struct {
	UserID   int64
	Status   store.PresenceStatus
	LastSeen time.Time
}

// RedisMirror copies presence into Redis so other services can read it without the database.
// Each user gets a hash "<prefix>presence:<id>" and online users are kept in a set.
type RedisMirror struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedisMirror builds a mirror writing keys under prefix.
func NewRedisMirror(rdb *redis.Client, prefix string) *RedisMirror {
	return &RedisMirror{rdb: rdb, prefix: prefix}
}

// UpdatePresence implements Writer. Hash and set are updated in one MULTI/EXEC.
func (m *RedisMirror) UpdatePresence(ctx context.Context, userID int64, status store.PresenceStatus, at time.Time) error {
	id := strconv.FormatInt(userID, 10)

	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, m.userKey(id), "status", string(status), "last_seen", at.UTC().Format(time.RFC3339Nano))
		if status == store.StatusOnline {
			pipe.SAdd(ctx, m.onlineKey(), id)
		} else {
			pipe.SRem(ctx, m.onlineKey(), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirror presence: %w", err)
	}
	return nil
}

// Get returns the cached presence for userID. Users never seen are reported offline.
func (m *RedisMirror) Get(ctx context.Context, userID int64) (*Snapshot, error) {
	snap := &Snapshot{UserID: userID, Status: store.StatusOffline}

	vals, err := m.rdb.HGetAll(ctx, m.userKey(strconv.FormatInt(userID, 10))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return snap, nil
		}
		return nil, fmt.Errorf("get presence: %w", err)
	}

	if s, ok := vals["status"]; ok {
		snap.Status = store.PresenceStatus(s)
	}
	if ts, ok := vals["last_seen"]; ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			snap.LastSeen = parsed
		}
	}
	return snap, nil
}

// Online returns ids currently in the online set.
func (m *RedisMirror) Online(ctx context.Context) ([]int64, error) {
	members, err := m.rdb.SMembers(ctx, m.onlineKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list online: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, member := range members {
		if id, err := strconv.ParseInt(member, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *RedisMirror) userKey(id string) string {
	return m.prefix + "presence:" + id
}

func (m *RedisMirror) onlineKey() string {
	return m.prefix + onlineSetKey
}
