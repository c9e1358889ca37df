package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/textstat/internal/analysiscache"
	"github.com/xxxsen/textstat/internal/analyzer"
	"github.com/xxxsen/textstat/internal/jobstore"
	"github.com/xxxsen/textstat/internal/model"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
	"github.com/xxxsen/textstat/internal/repo"
)

type Catalog interface {
	analysiscache.Lookup
	InsertAnalysisRecord(ctx context.Context, fileID, textHash string, stats model.Stats, extra map[string]interface{}) (*repo.InsertResult[model.AnalysisRecord], error)
}

type Config struct {
	Workers   int
	QueueSize int
	Retry     RetryPolicy
}

// Pipeline runs analysis jobs on a fixed pool of workers. Execution is
// at-least-once; the catalog's unique keys make repeated runs harmless.
type Pipeline struct {
	cfg     Config
	fetcher Fetcher
	catalog Catalog
	lookup  analysiscache.Lookup
	jobs    jobstore.Store

	mu     sync.RWMutex
	closed bool
	queue  chan string
	wg     sync.WaitGroup
}

// New builds a pipeline. lookup may wrap the catalog with a cache; nil
// means the catalog is queried directly.
func New(cfg Config, fetcher Fetcher, catalog Catalog, lookup analysiscache.Lookup, jobs jobstore.Store) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if lookup == nil {
		lookup = catalog
	}
	return &Pipeline{
		cfg:     cfg,
		fetcher: fetcher,
		catalog: catalog,
		lookup:  lookup,
		jobs:    jobs,
		queue:   make(chan string, cfg.QueueSize),
	}
}

//
// Workers keep the values of ctx but not its cancellation: a job that has been
// dequeued always runs to a terminal state, so shutdown goes through Stop.
func (p *Pipeline) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for jobID := range p.queue {
				p.process(ctx, jobID)
			}
		}()
	}
	logutil.GetLogger(ctx).Info("analysis pipeline started", zap.Int("workers", p.cfg.Workers))
}

// Stop stops accepting jobs and waits for queued and running jobs to finish.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit registers a pending job for fileID and queues it. It never touches
// the network.
func (p *Pipeline) Submit(ctx context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", appErr.ErrInvalid
	}
	now := time.Now().Unix()
	job := &model.Job{
		ID:     uuid.NewString(),
		FileID: fileID,
		Status: model.JobPending,
		Ctime:  now,
		Mtime:  now,
	}
	if err := p.jobs.Create(ctx, job); err != nil {
		return "", err
	}
	if p.enqueue(job.ID) {
		return job.ID, nil
	}
	logutil.GetLogger(ctx).Warn("analysis queue full, job rejected",
		zap.String("job_id", job.ID), zap.String("file_id", fileID))
	if _, err := p.jobs.Update(ctx, job.ID, func(j *model.Job) error {
		j.Status = model.JobFailed
		j.Reason = model.ReasonQueueFull
		return nil
	}); err != nil {
		logutil.GetLogger(ctx).Error("mark rejected job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	return job.ID, fmt.Errorf("submit analysis for %s: %w", fileID, appErr.ErrTooMany)
}

func (p *Pipeline) enqueue(jobID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- jobID:
		return true
	default:
		return false
	}
}

func (p *Pipeline) Status(ctx context.Context, jobID string) (*model.Job, error) {
	return p.jobs.Get(ctx, jobID)
}

// outcome is the terminal state a run settles on.
type outcome struct {
	status   model.JobStatus
	result   *model.JobResult
	reason   string
	attempts int
}

func (p *Pipeline) process(ctx context.Context, jobID string) {
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", jobID))
	job, err := p.jobs.Update(ctx, jobID, func(j *model.Job) error {
		j.Status = model.JobRunning
		return nil
	})
	if err != nil {
		logger.Error("start job failed", zap.Error(err))
		return
	}
	logger = logger.With(zap.String("file_id", job.FileID))
	start := time.Now()
	out := p.execute(ctx, job.FileID)
	_, err = p.jobs.Update(ctx, jobID, func(j *model.Job) error {
		j.Status = out.status
		j.Result = out.result
		j.Reason = out.reason
		j.Attempts = out.attempts
		return nil
	})
	if err != nil {
		logger.Error("finish job failed", zap.Error(err))
		return
	}
	fields := []zap.Field{
		zap.String("status", string(out.status)),
		zap.Int("attempts", out.attempts),
		zap.Duration("duration", time.Since(start)),
	}
	if out.status == model.JobFailed {
		logger.Warn("analysis job failed", append(fields, zap.String("reason", out.reason))...)
		return
	}
	logger.Info("analysis job finished", fields...)
}

func (p *Pipeline) execute(ctx context.Context, fileID string) outcome {
	logger := logutil.GetLogger(ctx).With(zap.String("file_id", fileID))
	var data []byte
	attempts, err := p.cfg.Retry.Do(ctx, appErr.IsTransient, func(attempt int) error {
		var ferr error
		data, ferr = p.fetcher.Fetch(ctx, fileID)
		if ferr != nil && appErr.IsTransient(ferr) {
			logger.Debug("fetch attempt failed", zap.Int("attempt", attempt), zap.Error(ferr))
		}
		return ferr
	})
	if err != nil {
		if appErr.IsNotFound(err) {
			return failed(model.ReasonFileNotFound, attempts)
		}
		logger.Error("fetch file failed", zap.Int("attempts", attempts), zap.Error(err))
		return failed(model.ReasonFetchExhausted, attempts)
	}
	text, err := analyzer.Decode(data)
	if err != nil {
		return failed(model.ReasonUnsupportedEncoding, attempts)
	}
	textHash := analyzer.TextHash(text)

	var out outcome
	_, err = p.cfg.Retry.Do(ctx, isCatalogRetryable, func(attempt int) error {
		var cerr error
		out, cerr = p.commit(ctx, fileID, textHash, text)
		if cerr != nil {
			logger.Warn("catalog attempt failed", zap.Int("attempt", attempt), zap.Error(cerr))
		}
		return cerr
	})
	if err != nil {
		return failed(model.ReasonCatalogUnavailable, attempts)
	}
	out.attempts = attempts
	return out
}

// commit resolves the job against the catalog: an existing result for the
// same normalized text wins, otherwise a new one is inserted.
func (p *Pipeline) commit(ctx context.Context, fileID, textHash, text string) (outcome, error) {
	existing, err := p.lookup.GetAnalysisRecordByTextHash(ctx, textHash)
	if err == nil {
		return settled(fileID, existing), nil
	}
	if !appErr.IsNotFound(err) {
		return outcome{}, err
	}
	res, err := p.catalog.InsertAnalysisRecord(ctx, fileID, textHash, analyzer.Analyze(text), analyzer.Extra(text))
	if err != nil {
		return outcome{}, err
	}
	return settled(fileID, res.Record), nil
}

// settled maps the record owning the text hash to a terminal state for
// fileID.
func settled(fileID string, rec *model.AnalysisRecord) outcome {
	stats := rec.Stats
	if rec.FileID == fileID {
		return outcome{
			status: model.JobSucceeded,
			result: &model.JobResult{Stats: &stats, AnalysisID: rec.ID},
		}
	}
	return outcome{
		status: model.JobDuplicate,
		result: &model.JobResult{Stats: &stats, AnalysisID: rec.ID, OriginalFileID: rec.FileID},
	}
}

func failed(reason string, attempts int) outcome {
	return outcome{status: model.JobFailed, reason: reason, attempts: attempts}
}

func isCatalogRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
