package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-battle-service/internal/domain"
)

// QuestionSource loads the question pool for a difficulty from a backing store.
type QuestionSource interface {
	QueryByDifficulty(ctx context.Context, difficulty string) ([]domain.Question, error)
}

// QuestionCache caches question pools in Redis and falls back to a source on cache miss.
// Pools are stored as: SET questions:{difficulty} {json array}
type QuestionCache struct {
	client *redis.Client
	source QuestionSource
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, source QuestionSource, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) QueryByDifficulty(ctx context.Context, difficulty string) ([]domain.Question, error) {
	if qs, ok := c.cached(ctx, difficulty); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(difficulty, func() (interface{}, error) {
		// re-check in case another caller filled it
		if qs, ok := c.cached(ctx, difficulty); ok {
			return qs, nil
		}
		qs, err := c.source.QueryByDifficulty(ctx, difficulty)
		if err != nil {
			return nil, err
		}
		if len(qs) == 0 {
			return qs, nil
		}
		if payload, err := json.Marshal(qs); err == nil {
			// best-effort; the source answer is still returned
			_ = c.client.Set(ctx, c.key(difficulty), payload, c.ttlWithJitter()).Err()
		}
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return domain.Battle{Questions: result.([]domain.Question)}.Clone().Questions, nil
}

// Invalidate drops the cached pool, e.g. after seeding new questions.
func (c *QuestionCache) Invalidate(ctx context.Context, difficulty string) error {
	return c.client.Del(ctx, c.key(difficulty)).Err()
}

func (c *QuestionCache) cached(ctx context.Context, difficulty string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, c.key(difficulty)).Bytes()
	if err != nil {
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(raw, &qs); err != nil || len(qs) == 0 {
		return nil, false
	}
	return qs, true
}

func (c *QuestionCache) key(difficulty string) string {
	return "questions:" + difficulty
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
