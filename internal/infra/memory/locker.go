package memory

import (
	"context"
	"sync"
	"time"
)

// Locker is the single-process implementation of app.Locker: a named lease
// with expiry, so a crashed holder cannot block the sweep forever.
type Locker struct {
	clock func() time.Time

	mu     sync.Mutex
	leases map[string]time.Time
}

func NewLocker() *Locker {
	return &Locker{clock: time.Now, leases: make(map[string]time.Time)}
}

func (l *Locker) TryLock(_ context.Context, name string, ttl time.Duration) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expiry, held := l.leases[name]; held && expiry.After(now) {
		return nil, false
	}
	l.leases[name] = now.Add(ttl)
	return func() {
		l.mu.Lock()
		delete(l.leases, name)
		l.mu.Unlock()
	}, true
}
