package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker implements app.Locker with a SET NX PX lease, so sweeps are
// mutually exclusive across instances. The lease expires on its own if the
// holder dies before releasing.
type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool) {
	token := uuid.NewString()
	key := "lease:" + name
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false
	}
	release := func() {
		// only the holder may release; a stale release after expiry must
		// not delete a successor's lease
		if current, err := l.client.Get(context.Background(), key).Result(); err == nil && current == token {
			_ = l.client.Del(context.Background(), key).Err()
		}
	}
	return release, true
}
