package memory

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-battle-service/internal/domain"
)

// QuestionSource loads the question pool for a difficulty from a backing store.
type QuestionSource interface {
	QueryByDifficulty(ctx context.Context, difficulty string) ([]domain.Question, error)
}

// QuestionCache caches question pools per difficulty with TTL to avoid repeated DB hits.
type QuestionCache struct {
	source QuestionSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(source QuestionSource, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
	}
}

func (c *QuestionCache) QueryByDifficulty(ctx context.Context, difficulty string) ([]domain.Question, error) {
	if qs, ok := c.lookup(difficulty); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(difficulty, func() (interface{}, error) {
		if qs, ok := c.lookup(difficulty); ok {
			return qs, nil
		}
		qs, err := c.source.QueryByDifficulty(ctx, difficulty)
		if err != nil {
			return nil, err
		}
		// an empty pool is not cached so that seeding takes effect at once
		if len(qs) > 0 {
			c.mu.Lock()
			c.cache[difficulty] = cachedPool{questions: qs, expiresAt: c.clock().Add(c.ttlWithJitter())}
			c.mu.Unlock()
		}
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return clonePool(result.([]domain.Question)), nil
}

// Invalidate drops the cached pool for a difficulty.
func (c *QuestionCache) Invalidate(difficulty string) {
	c.mu.Lock()
	delete(c.cache, difficulty)
	c.mu.Unlock()
}

func (c *QuestionCache) lookup(difficulty string) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[difficulty]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return clonePool(entry.questions), true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticQuestionPool is a pool backed by a fixed slice (useful for tests/demos).
type StaticQuestionPool struct {
	questions []domain.Question
}

func NewStaticQuestionPool(questions []domain.Question) *StaticQuestionPool {
	return &StaticQuestionPool{questions: clonePool(questions)}
}

// QueryByDifficulty matches case-insensitively; questions without a difficulty match any level.
func (p *StaticQuestionPool) QueryByDifficulty(_ context.Context, difficulty string) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(p.questions))
	for _, q := range p.questions {
		if q.Difficulty == "" || strings.EqualFold(q.Difficulty, difficulty) {
			out = append(out, q)
		}
	}
	return clonePool(out), nil
}

func clonePool(qs []domain.Question) []domain.Question {
	return domain.Battle{Questions: qs}.Clone().Questions
}
