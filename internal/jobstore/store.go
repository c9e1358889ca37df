package jobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/textstat/internal/config"
	"github.com/xxxsen/textstat/internal/model"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
)

// UpdateFunc mutates a copy of the stored job. Returning an error aborts
// the update.
type UpdateFunc func(job *model.Job) error

// Store keeps job state between submission and eviction. Implementations
// serialise updates per job and refuse to move a job out of a terminal
// status.
type Store interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	Update(ctx context.Context, id string, fn UpdateFunc) (*model.Job, error)
	DeleteTerminalBefore(ctx context.Context, cutoff int64) (int, error)
	Close() error
}

func New(cfg config.JobStoreConfig) (Store, error) {
	ttl := time.Duration(cfg.RetentionHours) * time.Hour * 2
	switch cfg.Type {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(cfg.RedisURL, ttl)
	}
	return nil, fmt.Errorf("unsupported job store type: %s", cfg.Type)
}

// applyUpdate runs fn on a clone of cur and validates the transition.
func applyUpdate(cur *model.Job, fn UpdateFunc) (*model.Job, error) {
	if cur.Status.Terminal() {
		return nil, fmt.Errorf("job %s already %s: %w", cur.ID, cur.Status, appErr.ErrInvalid)
	}
	next := cloneJob(cur)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = cur.ID
	next.Ctime = cur.Ctime
	next.Mtime = time.Now().Unix()
	return next, nil
}

func cloneJob(job *model.Job) *model.Job {
	if job == nil {
		return nil
	}
	c := *job
	if job.Result != nil {
		res := *job.Result
		if job.Result.Stats != nil {
			stats := *job.Result.Stats
			res.Stats = &stats
		}
		c.Result = &res
	}
	return &c
}
