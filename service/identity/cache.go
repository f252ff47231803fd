package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"PPChat/module/chat/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Resolver interface {
	ResolveUser(ctx context.Context, userID model.UserID) (model.User, error)
}

type cacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedResolver reads through Redis before asking the inner resolver. Only hits are
// cached; cache failures fall through to the inner resolver.
type CachedResolver struct {
	inner Resolver
	rdb   cacheClient
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedResolver(inner Resolver, rdb cacheClient, ttl time.Duration, log *zap.Logger) *CachedResolver {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedResolver{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func userKey(userID string) string { return "im:user:" + userID }

func (c *CachedResolver) ResolveUser(ctx context.Context, userID model.UserID) (model.User, error) {
	raw, err := c.rdb.Get(ctx, userKey(userID)).Bytes()
	switch {
	case err == nil:
		var u model.User
		if jerr := json.Unmarshal(raw, &u); jerr == nil {
			return u, nil
		}
		c.log.Warn("bad cached user", zap.String("user", userID))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("user cache read", zap.String("user", userID), zap.Error(err))
	}

	u, err := c.inner.ResolveUser(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	if b, jerr := json.Marshal(u); jerr == nil {
		if serr := c.rdb.Set(ctx, userKey(userID), b, c.ttl).Err(); serr != nil {
			c.log.Warn("user cache write", zap.String("user", userID), zap.Error(serr))
		}
	}
	return u, nil
}
