package memory

import (
	"context"
	"testing"
	"time"
)

func TestLockerExcludesSecondHolder(t *testing.T) {
	locker := NewLocker()
	ctx := context.Background()

	release, ok := locker.TryLock(ctx, "sweep", time.Minute)
	if !ok {
		t.Fatalf("expected first TryLock to succeed")
	}
	if _, ok := locker.TryLock(ctx, "sweep", time.Minute); ok {
		t.Fatalf("expected second TryLock to fail while held")
	}
	if _, ok := locker.TryLock(ctx, "other", time.Minute); !ok {
		t.Fatalf("expected independent lease name to succeed")
	}

	release()
	if _, ok := locker.TryLock(ctx, "sweep", time.Minute); !ok {
		t.Fatalf("expected TryLock to succeed after release")
	}
}

func TestLockerLeaseExpires(t *testing.T) {
	locker := NewLocker()
	now := time.Unix(1000, 0)
	locker.clock = func() time.Time { return now }

	if _, ok := locker.TryLock(context.Background(), "sweep", time.Minute); !ok {
		t.Fatalf("expected TryLock to succeed")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := locker.TryLock(context.Background(), "sweep", time.Minute); !ok {
		t.Fatalf("expected expired lease to be reacquirable")
	}
}
