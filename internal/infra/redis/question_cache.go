package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"mcq-contest-service/internal/domain"
)

// QuestionLoader fetches a contest's question set from the backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, contestID string) ([]domain.Question, error)
}

// QuestionCache caches the whole question set as JSON under one key per
// contest (contest:{id}:questions) and falls back to the loader on a miss.
// Question sets are immutable after creation, so TTL expiry only costs a
// reload from the document store.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) ContestQuestions(ctx context.Context, contestID string) ([]domain.Question, error) {
	key := c.key(contestID)

	if questions, ok := c.cached(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(contestID, func() (interface{}, error) {
		// re-check in case another goroutine filled the key
		if questions, ok := c.cached(ctx, key); ok {
			return questions, nil
		}

		questions, err := c.loader.LoadQuestions(ctx, contestID)
		if err != nil {
			return nil, err
		}

		if raw, err := json.Marshal(questions); err == nil {
			// best-effort cache fill
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) key(contestID string) string {
	return "contest:" + contestID + ":questions"
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
