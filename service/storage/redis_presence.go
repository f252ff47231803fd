package storage

import (
	"context"
	"strconv"
	"time"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// presenceClient is the subset of redis.Cmdable the mirror needs.
type presenceClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// PresenceMirror copies presence transitions into Redis: the online key carries the
// gateway node id with a TTL, the last-seen key the time of the last offline.
type PresenceMirror struct {
	rdb    presenceClient
	nodeID string
	ttl    time.Duration
}

func NewPresenceMirror(rdb presenceClient, nodeID string, ttl time.Duration) *PresenceMirror {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PresenceMirror{rdb: rdb, nodeID: nodeID, ttl: ttl}
}

func (p *PresenceMirror) Observe(ctx context.Context, ev model.PresenceEvent) error {
	if ev.IsOnline {
		return errs.Wrap(p.rdb.Set(ctx, presenceKey(ev.UserID), p.nodeID, p.ttl).Err(), "presence online")
	}
	if err := p.rdb.Del(ctx, presenceKey(ev.UserID)).Err(); err != nil {
		return errs.Wrap(err, "presence offline")
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return errs.Wrap(p.rdb.Set(ctx, lastSeenKey(ev.UserID), ts.UnixMilli(), 0).Err(), "presence last seen")
}

// LastSeen returns nil when the user has no recorded offline transition.
func (p *PresenceMirror) LastSeen(ctx context.Context, userID model.UserID) (*time.Time, error) {
	val, err := p.rdb.Get(ctx, lastSeenKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, "read last seen")
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, errs.WrapMsg(err, "bad last seen value", "user", userID)
	}
	ts := time.UnixMilli(ms).UTC()
	return &ts, nil
}

// PresenceLookup reports which gateway node holds the user, if any.
func (p *PresenceMirror) PresenceLookup(ctx context.Context, userID model.UserID) (string, bool, error) {
	val, err := p.rdb.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Wrap(err, "presence lookup")
	}
	return val, true, nil
}

// ClearPresence removes the online key without touching last seen.
func (p *PresenceMirror) ClearPresence(ctx context.Context, userID model.UserID) error {
	return errs.Wrap(p.rdb.Del(ctx, presenceKey(userID)).Err(), "clear presence")
}
