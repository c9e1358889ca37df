package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/textstat/internal/jobstore"
)

// JobCleanupJob evicts finished analysis jobs once they are older than the
// retention window.
type JobCleanupJob struct {
	jobs      jobstore.Store
	retention time.Duration
}

func NewJobCleanupJob(jobs jobstore.Store, retention time.Duration) *JobCleanupJob {
	return &JobCleanupJob{jobs: jobs, retention: retention}
}

func (j *JobCleanupJob) Name() string {
	return "job_cleanup"
}

func (j *JobCleanupJob) Run(ctx context.Context) error {
	if j.jobs == nil {
		return nil
	}
	retention := j.retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	cutoff := time.Now().Add(-retention).Unix()
	deleted, err := j.jobs.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("evicted finished jobs", zap.Int("count", deleted))
	}
	return nil
}
