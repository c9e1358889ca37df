package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/textstat/internal/analysiscache"
	"github.com/xxxsen/textstat/internal/jobstore"
	"github.com/xxxsen/textstat/internal/model"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
	"github.com/xxxsen/textstat/internal/repo"
	"github.com/xxxsen/textstat/internal/testutil"
)

// fileServer serves /files/{id} from an in-memory map and counts hits.
type fileServer struct {
	mu     sync.Mutex
	files  map[string][]byte
	status map[string]int
	hits   map[string]*atomic.Int32
}

func newFileServer() *fileServer {
	return &fileServer{files: map[string][]byte{}, status: map[string]int{}, hits: map[string]*atomic.Int32{}}
}

func (s *fileServer) counter(id string) *atomic.Int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.hits[id]
	if !ok {
		c = &atomic.Int32{}
		s.hits[id] = c
	}
	return c
}

func (s *fileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutPrefix(r.URL.Path, "/files/")
	if r.Method != http.MethodGet || !ok {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.counter(id).Add(1)
	s.mu.Lock()
	data, found := s.files[id]
	code, forced := s.status[id]
	s.mu.Unlock()
	if forced {
		w.WriteHeader(code)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, _ = w.Write(data)
}

type fixture struct {
	server   *fileServer
	catalog  *repo.Catalog
	pipeline *Pipeline
}

func newFixture(t *testing.T, maxAttempts int) *fixture {
	t.Helper()
	files := newFileServer()
	srv := httptest.NewServer(files)
	t.Cleanup(srv.Close)
	catalog := repo.NewCatalog(testutil.OpenSQLite(t))
	p := New(Config{
		Workers:   4,
		QueueSize: 16,
		Retry:     RetryPolicy{MaxAttempts: maxAttempts, Delay: 5 * time.Millisecond},
	}, NewHTTPFetcher(srv.URL, time.Second, 0), catalog, analysiscache.Wrap(catalog, 16, time.Minute), jobstore.NewMemory())
	p.Start(context.Background())
	t.Cleanup(p.Stop)
	return &fixture{server: files, catalog: catalog, pipeline: p}
}

func (f *fixture) wait(t *testing.T, jobID string) *model.Job {
	t.Helper()
	var job *model.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = f.pipeline.Status(context.Background(), jobID)
		require.NoError(t, err)
		return job.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestPipelineAnalyzesFile(t *testing.T) {
	f := newFixture(t, 4)
	f.server.files["file-1"] = []byte("Hello world.\n\nSecond paragraph here.")

	jobID, err := f.pipeline.Submit(context.Background(), "file-1")
	require.NoError(t, err)
	job := f.wait(t, jobID)
	require.Equal(t, model.JobSucceeded, job.Status)
	require.Equal(t, 1, job.Attempts)
	require.Equal(t, model.Stats{Paragraphs: 2, Words: 5, Characters: 36}, *job.Result.Stats)

	rec, err := f.catalog.GetAnalysisRecordByFileID(context.Background(), "file-1")
	require.NoError(t, err)
	require.Equal(t, job.Result.AnalysisID, rec.ID)
}

func TestPipelineDuplicateRace(t *testing.T) {
	f := newFixture(t, 4)
	f.server.files["file-a"] = []byte("Hello, World!")
	f.server.files["file-b"] = []byte("hello world")
	ctx := context.Background()

	jobA, err := f.pipeline.Submit(ctx, "file-a")
	require.NoError(t, err)
	jobB, err := f.pipeline.Submit(ctx, "file-b")
	require.NoError(t, err)
	a := f.wait(t, jobA)
	b := f.wait(t, jobB)

	winner, loser := a, b
	if a.Status == model.JobDuplicate {
		winner, loser = b, a
	}
	require.Equal(t, model.JobSucceeded, winner.Status)
	require.Equal(t, model.JobDuplicate, loser.Status)
	require.Equal(t, winner.FileID, loser.Result.OriginalFileID)

	_, err = f.catalog.GetAnalysisRecordByFileID(ctx, loser.FileID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	rec, err := f.catalog.GetAnalysisRecordByFileID(ctx, winner.FileID)
	require.NoError(t, err)
	require.Equal(t, winner.Result.AnalysisID, rec.ID)
}

func TestPipelineResubmissionIsIdempotent(t *testing.T) {
	f := newFixture(t, 4)
	f.server.files["file-1"] = []byte("one two three")
	ctx := context.Background()

	first, err := f.pipeline.Submit(ctx, "file-1")
	require.NoError(t, err)
	firstJob := f.wait(t, first)
	second, err := f.pipeline.Submit(ctx, "file-1")
	require.NoError(t, err)
	secondJob := f.wait(t, second)

	require.NotEqual(t, first, second)
	require.Equal(t, model.JobSucceeded, secondJob.Status)
	require.Equal(t, firstJob.Result.AnalysisID, secondJob.Result.AnalysisID)
	require.Equal(t, *firstJob.Result.Stats, *secondJob.Result.Stats)
}

func TestPipelineRetriesExhausted(t *testing.T) {
	f := newFixture(t, 4)
	f.server.status["flaky"] = http.StatusServiceUnavailable

	jobID, err := f.pipeline.Submit(context.Background(), "flaky")
	require.NoError(t, err)
	job := f.wait(t, jobID)
	require.Equal(t, model.JobFailed, job.Status)
	require.Equal(t, model.ReasonFetchExhausted, job.Reason)
	require.Equal(t, 4, job.Attempts)
	require.EqualValues(t, 4, f.server.counter("flaky").Load())
}

func TestPipelineMissingFileNotRetried(t *testing.T) {
	f := newFixture(t, 4)

	jobID, err := f.pipeline.Submit(context.Background(), "ghost")
	require.NoError(t, err)
	job := f.wait(t, jobID)
	require.Equal(t, model.JobFailed, job.Status)
	require.Equal(t, model.ReasonFileNotFound, job.Reason)
	require.EqualValues(t, 1, f.server.counter("ghost").Load())
}

func TestPipelineUnsupportedEncoding(t *testing.T) {
	f := newFixture(t, 4)
	f.server.files["binary"] = []byte{0xff, 0xfe, 0x00, 0x41}

	jobID, err := f.pipeline.Submit(context.Background(), "binary")
	require.NoError(t, err)
	job := f.wait(t, jobID)
	require.Equal(t, model.JobFailed, job.Status)
	require.Equal(t, model.ReasonUnsupportedEncoding, job.Reason)
}

func TestPipelineStatusUnknownJob(t *testing.T) {
	f := newFixture(t, 4)
	_, err := f.pipeline.Status(context.Background(), "nope")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestSubmitQueueFull(t *testing.T) {
	jobs := jobstore.NewMemory()
	p := New(Config{Workers: 1, QueueSize: 1}, nil, nil, nil, jobs)
	ctx := context.Background()

	first, err := p.Submit(ctx, "file-1")
	require.NoError(t, err)
	second, err := p.Submit(ctx, "file-2")
	require.ErrorIs(t, err, appErr.ErrTooMany)

	job, err := p.Status(ctx, second)
	require.NoError(t, err)
	require.Equal(t, model.JobFailed, job.Status)
	require.Equal(t, model.ReasonQueueFull, job.Reason)
	job, err = p.Status(ctx, first)
	require.NoError(t, err)
	require.Equal(t, model.JobPending, job.Status)
}

func TestPipelineStopDrainsAfterContextCancel(t *testing.T) {
	files := newFileServer()
	ids := []string{"f1", "f2", "f3"}
	for _, id := range ids {
		files.files[id] = []byte("contents of " + id)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		files.ServeHTTP(w, r)
	}))
	defer srv.Close()
	catalog := repo.NewCatalog(testutil.OpenSQLite(t))
	p := New(Config{
		Workers:   1,
		QueueSize: 4,
		Retry:     RetryPolicy{MaxAttempts: 4, Delay: 5 * time.Millisecond},
	}, NewHTTPFetcher(srv.URL, time.Second, 0), catalog, nil, jobstore.NewMemory())

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	jobIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		jobID, err := p.Submit(ctx, id)
		require.NoError(t, err)
		jobIDs = append(jobIDs, jobID)
	}
	cancel()
	p.Stop()

	for _, jobID := range jobIDs {
		job, err := p.Status(context.Background(), jobID)
		require.NoError(t, err)
		require.Equal(t, model.JobSucceeded, job.Status, "job %s reason=%s", job.FileID, job.Reason)
		require.Equal(t, 1, job.Attempts)
	}
	for _, id := range ids {
		require.EqualValues(t, 1, files.counter(id).Load())
	}

	late, err := p.Submit(context.Background(), "f1")
	require.ErrorIs(t, err, appErr.ErrTooMany)
	job, err := p.Status(context.Background(), late)
	require.NoError(t, err)
	require.Equal(t, model.ReasonQueueFull, job.Reason)
}
