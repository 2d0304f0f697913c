package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-duel-service/internal/domain"
)

// PoolLoader fetches a category's question pool from a backing store.
type PoolLoader interface {
	LoadPool(ctx context.Context, category domain.Category) ([]domain.Question, error)
}

// PoolRepository caches question pools with TTL to avoid repeated loads.
type PoolRepository struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[domain.Category]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewPoolRepository(loader PoolLoader, ttl time.Duration) *PoolRepository {
	return &PoolRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.Category]cachedPool),
	}
}

// QuestionsFor implements app.ContentSource.
func (r *PoolRepository) QuestionsFor(ctx context.Context, category domain.Category) ([]domain.Question, error) {
	if pool, ok := r.cached(category); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(category.String(), func() (interface{}, error) {
		if pool, ok := r.cached(category); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadPool(ctx, category)
		if err != nil {
			return nil, err
		}
		if len(pool) == 0 {
			return nil, domain.ErrEmptyPool
		}

		r.mu.Lock()
		r.cache[category] = cachedPool{
			questions: pool,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *PoolRepository) cached(category domain.Category) ([]domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[category]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return entry.questions, true
}

func (r *PoolRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticPoolLoader serves pools from an in-memory map, such as the built-in bank.
type StaticPoolLoader struct {
	pools map[domain.Category][]domain.Question
}

func NewStaticPoolLoader(pools map[domain.Category][]domain.Question) *StaticPoolLoader {
	return &StaticPoolLoader{pools: pools}
}

func (l *StaticPoolLoader) LoadPool(_ context.Context, category domain.Category) ([]domain.Question, error) {
	if pool, ok := l.pools[category]; ok && len(pool) > 0 {
		return pool, nil
	}
	return nil, domain.ErrEmptyPool
}
