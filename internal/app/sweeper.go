package app

import (
	"context"
	"log"
	"time"

	"mcq-contest-service/internal/docstore"
	"mcq-contest-service/internal/domain"
)

// Locker provides a mutual-exclusion lease so overlapping sweep ticks (or
// multiple instances) never double-finalize a contest. Implementations:
// in-process mutex map, Redis SET NX lease.
type Locker interface {
	// TryLock acquires the named lease for at most ttl. It returns false
	// when another holder is active. The release func is never nil on
	// success.
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool)
}

// Sweeper is the periodic background worker: contest auto-finalization
// (authoritative, survives restarts because it keys off the stored endTime)
// and expired-session cleanup.
type Sweeper struct {
	store    docstore.Store
	contests *ContestService
	auth     *AuthService
	locker   Locker
	leaseTTL time.Duration
	now      func() time.Time
}

func NewSweeper(store docstore.Store, contests *ContestService, auth *AuthService, locker Locker, leaseTTL time.Duration) *Sweeper {
	return NewSweeperWithClock(store, contests, auth, locker, leaseTTL, time.Now)
}

// NewSweeperWithClock injects a deterministic clock for tests.
func NewSweeperWithClock(store docstore.Store, contests *ContestService, auth *AuthService, locker Locker, leaseTTL time.Duration, now func() time.Time) *Sweeper {
	if leaseTTL <= 0 {
		leaseTTL = time.Minute
	}
	return &Sweeper{store: store, contests: contests, auth: auth, locker: locker, leaseTTL: leaseTTL, now: now}
}

// SweepFinalize finds running contests whose end time has passed and
// finalizes each. A per-contest failure marks that contest completed with a
// finalizationError field instead of leaving it running forever, and never
// aborts the rest of the sweep.
func (s *Sweeper) SweepFinalize(ctx context.Context) error {
	release, ok := s.locker.TryLock(ctx, "sweep:finalize", s.leaseTTL)
	if !ok {
		log.Printf("finalize sweep already in progress, skipping tick")
		return nil
	}
	defer release()

	q := docstore.Query{}.
		Where("status", docstore.OpEq, domain.StatusRunning).
		Where("endTime", docstore.OpLte, s.now().Unix())
	var due []domain.Contest
	if err := s.store.Query(ctx, colContests, q, &due); err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	log.Printf("found %d contests to finalize", len(due))

	for _, contest := range due {
		if err := s.contests.FinalizeContest(ctx, contest.ID); err != nil {
			log.Printf("failed to finalize contest %s: %v", contest.ID, err)
			// forward progress over strict correctness: complete the
			// contest with a durable error marker so the sweep does not
			// retry it forever
			if markErr := s.store.Update(ctx, colContests, contest.ID, map[string]any{
				"status":            domain.StatusCompleted,
				"finalizationError": err.Error(),
			}); markErr != nil {
				log.Printf("failed to mark contest %s: %v", contest.ID, markErr)
			}
			continue
		}
		log.Printf("finalized contest %s (%s)", contest.ID, contest.Title)
	}
	return nil
}

// SweepSessions deactivates sessions idle past the inactivity window.
func (s *Sweeper) SweepSessions(ctx context.Context) error {
	release, ok := s.locker.TryLock(ctx, "sweep:sessions", s.leaseTTL)
	if !ok {
		log.Printf("session sweep already in progress, skipping tick")
		return nil
	}
	defer release()

	swept, err := s.auth.CleanupExpiredSessions(ctx)
	if err != nil {
		return err
	}
	if swept > 0 {
		log.Printf("cleaned up %d inactive sessions", swept)
	}
	return nil
}

// Run ticks both sweeps until the context is canceled. Finalization checks
// run every finalizeEvery (at least once a minute in production), session
// cleanup every cleanupEvery.
func (s *Sweeper) Run(ctx context.Context, finalizeEvery, cleanupEvery time.Duration) {
	finalizeTicker := time.NewTicker(finalizeEvery)
	cleanupTicker := time.NewTicker(cleanupEvery)
	defer finalizeTicker.Stop()
	defer cleanupTicker.Stop()

	log.Printf("sweeper started (finalize every %s, cleanup every %s)", finalizeEvery, cleanupEvery)
	for {
		select {
		case <-ctx.Done():
			log.Printf("sweeper stopped")
			return
		case <-finalizeTicker.C:
			if err := s.SweepFinalize(ctx); err != nil {
				log.Printf("finalize sweep failed: %v", err)
			}
		case <-cleanupTicker.C:
			if err := s.SweepSessions(ctx); err != nil {
				log.Printf("session sweep failed: %v", err)
			}
		}
	}
}
