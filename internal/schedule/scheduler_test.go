package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int32
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

func TestCronSchedulerRunsJob(t *testing.T) {
	s := NewCronScheduler()
	job := &countingJob{}
	require.NoError(t, s.AddJob(job, "@every 1s"))
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return job.runs.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
}

func TestCronSchedulerRejectsBadSpec(t *testing.T) {
	s := NewCronScheduler()
	require.Error(t, s.AddJob(&countingJob{}, "not a spec"))
}

func TestCronSchedulerRejectsDuplicateName(t *testing.T) {
	s := NewCronScheduler()
	require.NoError(t, s.AddJob(&countingJob{}, "*/5 * * * *"))
	require.Error(t, s.AddJob(&countingJob{}, "*/10 * * * *"))
}
