package memory

import (
	"context"
	"sync"
	"time"

	"mcq-contest-service/internal/domain"
)

// AuthCache is the in-process implementation of app.AuthCache: verified
// sessions with a short TTL so store deactivations propagate quickly.
type AuthCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedAuth
}

type cachedAuth struct {
	actx      domain.AuthContext
	expiresAt time.Time
}

func NewAuthCache(ttl time.Duration) *AuthCache {
	return &AuthCache{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]cachedAuth),
	}
}

func (c *AuthCache) Get(_ context.Context, sessionID string) (domain.AuthContext, bool) {
	c.mu.RLock()
	entry, ok := c.entries[sessionID]
	c.mu.RUnlock()
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.AuthContext{}, false
	}
	return entry.actx, true
}

func (c *AuthCache) Put(_ context.Context, actx domain.AuthContext) {
	c.mu.Lock()
	c.entries[actx.SessionID] = cachedAuth{actx: actx, expiresAt: c.clock().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *AuthCache) Drop(_ context.Context, sessionID string) {
	c.mu.Lock()
	delete(c.entries, sessionID)
	c.mu.Unlock()
}
