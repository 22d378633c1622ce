package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mcq-contest-service/internal/domain"
)

// QuestionLoader fetches a contest's question set from the backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, contestID string) ([]domain.Question, error)
}

// QuestionCache caches question sets with TTL to keep answer saves and
// finalization from re-reading the store. Questions are immutable after
// contest creation, so staleness only costs a reload.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestions),
	}
}

func (c *QuestionCache) ContestQuestions(ctx context.Context, contestID string) ([]domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[contestID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.questions, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(contestID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[contestID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.questions, nil
		}
		c.mu.RUnlock()

		questions, err := c.loader.LoadQuestions(ctx, contestID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[contestID] = cachedQuestions{
			questions: questions,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
