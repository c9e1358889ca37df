package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/textstat/internal/jobstore"
	"github.com/xxxsen/textstat/internal/model"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
)

func TestJobCleanupJobEvictsOldTerminalJobs(t *testing.T) {
	store := jobstore.NewMemory()
	ctx := context.Background()
	now := time.Now().Unix()
	old := time.Now().Add(-48 * time.Hour).Unix()

	seed := []*model.Job{
		{ID: "old-done", Status: model.JobSucceeded, Mtime: old},
		{ID: "old-failed", Status: model.JobFailed, Reason: model.ReasonFileNotFound, Mtime: old},
		{ID: "old-pending", Status: model.JobPending, Mtime: old},
		{ID: "new-done", Status: model.JobDuplicate, Mtime: now},
	}
	for _, j := range seed {
		j.FileID = "f"
		j.Ctime = j.Mtime
		require.NoError(t, store.Create(ctx, j))
	}

	require.NoError(t, NewJobCleanupJob(store, 24*time.Hour).Run(ctx))

	for _, id := range []string{"old-done", "old-failed"} {
		_, err := store.Get(ctx, id)
		require.ErrorIs(t, err, appErr.ErrNotFound, id)
	}
	for _, id := range []string{"old-pending", "new-done"} {
		_, err := store.Get(ctx, id)
		require.NoError(t, err, id)
	}
}

func TestJobCleanupJobWithoutStore(t *testing.T) {
	require.NoError(t, NewJobCleanupJob(nil, time.Hour).Run(context.Background()))
	require.Equal(t, "job_cleanup", NewJobCleanupJob(nil, time.Hour).Name())
}
