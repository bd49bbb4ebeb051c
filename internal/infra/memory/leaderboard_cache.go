package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// LeaderboardCache caches full rankings per filter with TTL and truncates
// to topN on read. It also acts as an app.GradeNotifier: every committed
// grading evicts the filters its quiz falls under.
type LeaderboardCache struct {
	ranker app.Ranker
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu         sync.RWMutex
	generation uint64
	cache      map[domain.LeaderboardFilter]cachedBoard
}

type cachedBoard struct {
	entries   []domain.LeaderboardEntry
	expiresAt time.Time
}

func NewLeaderboardCache(ranker app.Ranker, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		ranker: ranker,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.LeaderboardFilter]cachedBoard),
	}
}

func (c *LeaderboardCache) Rank(ctx context.Context, filter domain.LeaderboardFilter, topN int) ([]domain.LeaderboardEntry, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[filter]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		metrics.LeaderboardCache.WithLabelValues("memory", "hit").Inc()
		return app.TopN(entry.entries, topN), nil
	}
	c.mu.RUnlock()
	metrics.LeaderboardCache.WithLabelValues("memory", "miss").Inc()

	result, err, _ := c.sf.Do(filter.Key(), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[filter]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.entries, nil
		}
		gen := c.generation
		c.mu.RUnlock()

		entries, err := c.ranker.Rank(ctx, filter, 0)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// An eviction while we were ranking means entries may already be stale.
		if c.generation == gen {
			c.cache[filter] = cachedBoard{
				entries:   entries,
				expiresAt: now.Add(c.ttlWithJitter()),
			}
		}
		c.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return app.TopN(result.([]domain.LeaderboardEntry), topN), nil
}

// SubmissionGraded evicts every cached filter the graded quiz falls under.
func (c *LeaderboardCache) SubmissionGraded(_ context.Context, quiz domain.Quiz, _ domain.GradingResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for filter := range c.cache {
		if filter.Matches(quiz.Subject, quiz.GradeLevel) {
			delete(c.cache, filter)
		}
	}
	return nil
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
