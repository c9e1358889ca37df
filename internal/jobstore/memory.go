package jobstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/xxxsen/textstat/internal/model"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
)

type memoryStore struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func NewMemory() Store {
	return &memoryStore{jobs: make(map[string]*model.Job)}
}

func (s *memoryStore) Create(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s: %w", job.ID, appErr.ErrConflict)
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *memoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	next, err := applyUpdate(cur, fn)
	if err != nil {
		return nil, err
	}
	s.jobs[id] = next
	return cloneJob(next), nil
}

func (s *memoryStore) DeleteTerminalBefore(ctx context.Context, cutoff int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.Mtime < cutoff {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memoryStore) Close() error {
	return nil
}
