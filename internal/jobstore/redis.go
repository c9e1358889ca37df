package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xxxsen/textstat/internal/model"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
)

const (
	jobKeyPrefix = "textstat:job:"
	jobIndexKey  = "textstat:jobs:index" // sorted set: score=mtime, member=job id
	maxWatchRuns = 8
)

type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to url and verifies connectivity. Job documents expire
// after ttl even if the cleanup job never runs.
func NewRedis(url string, ttl time.Duration) (Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newRedisStore(rdb, ttl), nil
}

func newRedisStore(rdb *redis.Client, ttl time.Duration) *redisStore {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &redisStore{rdb: rdb, ttl: ttl}
}

func (s *redisStore) jobKey(id string) string { return jobKeyPrefix + id }

func (s *redisStore) Create(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	key := s.jobKey(job.ID)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("job %s: %w", job.ID, appErr.ErrConflict)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.ZAdd(ctx, jobIndexKey, redis.Z{Score: float64(job.Mtime), Member: job.ID})
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("job %s: %w", job.ID, appErr.ErrConflict)
	}
	return err
}

func (s *redisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	return s.load(ctx, s.rdb, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *redisStore) load(ctx context.Context, g getter, id string) (*model.Job, error) {
	data, err := g.Get(ctx, s.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *redisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*model.Job, error) {
	key := s.jobKey(id)
	var next *model.Job
	txf := func(tx *redis.Tx) error {
		cur, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err = applyUpdate(cur, fn)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.ZAdd(ctx, jobIndexKey, redis.Z{Score: float64(next.Mtime), Member: id})
			return nil
		})
		return err
	}
	for i := 0; i < maxWatchRuns; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, fmt.Errorf("update job %s: %w", id, appErr.ErrConflict)
}

func (s *redisStore) DeleteTerminalBefore(ctx context.Context, cutoff int64) (int, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, jobIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if appErr.IsNotFound(err) {
			if err := s.rdb.ZRem(ctx, jobIndexKey, id).Err(); err != nil {
				return deleted, fmt.Errorf("drop expired job %s from index: %w", id, err)
			}
			continue
		}
		if err != nil {
			return deleted, err
		}
		if !job.Status.Terminal() {
			continue
		}
		pipe := s.rdb.TxPipeline()
		pipe.Del(ctx, s.jobKey(id))
		pipe.ZRem(ctx, jobIndexKey, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}
