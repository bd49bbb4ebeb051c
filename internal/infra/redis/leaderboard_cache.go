package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// LeaderboardCache keeps full rankings in Redis so every instance shares them,
// and falls back to the wrapped ranker on a miss.
// Rankings are stored as:  SET leaderboard:{filterKey} <json entries>
// Evictions bump:          INCR leaderboard:generation
// A load only writes back if the generation did not move while it ranked.
type LeaderboardCache struct {
	client *redis.Client
	ranker app.Ranker
	ttl    time.Duration
	log    *zap.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

const generationKey = "leaderboard:generation"

func NewLeaderboardCache(client *redis.Client, ranker app.Ranker, ttl time.Duration, log *zap.Logger) *LeaderboardCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &LeaderboardCache{
		client: client,
		ranker: ranker,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) Rank(ctx context.Context, filter domain.LeaderboardFilter, topN int) ([]domain.LeaderboardEntry, error) {
	key := c.boardKey(filter)

	if entries, ok := c.lookup(ctx, key); ok {
		metrics.LeaderboardCache.WithLabelValues("redis", "hit").Inc()
		return app.TopN(entries, topN), nil
	}
	metrics.LeaderboardCache.WithLabelValues("redis", "miss").Inc()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if entries, ok := c.lookup(ctx, key); ok {
			return entries, nil
		}

		gen, err := c.generation(ctx)
		if err != nil {
			c.log.Warn("read leaderboard generation", zap.Error(err))
		}

		entries, err := c.ranker.Rank(ctx, filter, 0)
		if err != nil {
			return nil, err
		}

		if err := c.store(ctx, key, gen, entries); err != nil {
			c.log.Warn("write leaderboard cache", zap.String("key", key), zap.Error(err))
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return app.TopN(result.([]domain.LeaderboardEntry), topN), nil
}

// SubmissionGraded deletes every cached filter the graded quiz falls under.
func (c *LeaderboardCache) SubmissionGraded(ctx context.Context, quiz domain.Quiz, _ domain.GradingResult) error {
	keys := make([]string, 0, 4)
	for _, f := range affectedFilters(quiz) {
		keys = append(keys, c.boardKey(f))
	}
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, generationKey)
	pipe.Del(ctx, keys...)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *LeaderboardCache) lookup(ctx context.Context, key string) ([]domain.LeaderboardEntry, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("read leaderboard cache", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (c *LeaderboardCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *LeaderboardCache) store(ctx context.Context, key string, gen int64, entries []domain.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	ttl := c.ttlWithJitter()
	return c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, generationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, generationKey)
}

func (c *LeaderboardCache) boardKey(filter domain.LeaderboardFilter) string {
	return "leaderboard:" + filter.Key()
}

// affectedFilters lists every filter under which a quiz's submissions are ranked.
func affectedFilters(quiz domain.Quiz) []domain.LeaderboardFilter {
	return []domain.LeaderboardFilter{
		{},
		{Subject: quiz.Subject},
		{GradeLevel: quiz.GradeLevel},
		{Subject: quiz.Subject, GradeLevel: quiz.GradeLevel},
	}
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
