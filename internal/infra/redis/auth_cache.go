package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"mcq-contest-service/internal/domain"
)

// AuthCache implements app.AuthCache on Redis so verified sessions are
// shared across instances. Keys: session:auth:{sessionID}. The TTL must be
// short relative to the inactivity window so deactivations propagate.
type AuthCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAuthCache(client *redis.Client, ttl time.Duration) *AuthCache {
	return &AuthCache{client: client, ttl: ttl}
}

func (c *AuthCache) Get(ctx context.Context, sessionID string) (domain.AuthContext, bool) {
	raw, err := c.client.Get(ctx, c.key(sessionID)).Bytes()
	if err != nil {
		return domain.AuthContext{}, false
	}
	var actx domain.AuthContext
	if err := json.Unmarshal(raw, &actx); err != nil {
		return domain.AuthContext{}, false
	}
	return actx, true
}

func (c *AuthCache) Put(ctx context.Context, actx domain.AuthContext) {
	raw, err := json.Marshal(actx)
	if err != nil {
		return
	}
	// best-effort; a lost write only costs a store round trip
	_ = c.client.Set(ctx, c.key(actx.SessionID), raw, c.ttl).Err()
}

func (c *AuthCache) Drop(ctx context.Context, sessionID string) {
	_ = c.client.Del(ctx, c.key(sessionID)).Err()
}

func (c *AuthCache) key(sessionID string) string {
	return "session:auth:" + sessionID
}
