package service

import (
	"context"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/textstat/internal/contentstore"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
	"github.com/xxxsen/textstat/internal/repo"
	"github.com/xxxsen/textstat/internal/testutil"
)

func newTestFileService(t *testing.T) (*FileService, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewFileService(repo.NewCatalog(testutil.OpenSQLite(t)), contentstore.NewLocal(fs)), fs
}

func blobCount(t *testing.T, fs afero.Fs) int {
	t.Helper()
	infos, err := afero.ReadDir(fs, "/")
	require.NoError(t, err)
	return len(infos)
}

func TestUploadDeduplicatesIdenticalBytes(t *testing.T) {
	svc, fs := newTestFileService(t)
	ctx := context.Background()

	first, err := svc.Upload(ctx, "notes.TXT", []byte("hello world"))
	require.NoError(t, err)
	require.False(t, first.Existing)
	require.Equal(t, MessageUploaded, first.Message())
	require.Equal(t, first.File.Hash+".txt", first.File.Location)
	require.Len(t, first.File.Hash, 64)

	second, err := svc.Upload(ctx, "renamed.md", []byte("hello world"))
	require.NoError(t, err)
	require.True(t, second.Existing)
	require.Equal(t, MessageExists, second.Message())
	require.Equal(t, first.File.ID, second.File.ID)
	require.Equal(t, "notes.TXT", second.File.Name)
	require.Equal(t, 1, blobCount(t, fs))

	third, err := svc.Upload(ctx, "notes.txt", []byte("hello world!"))
	require.NoError(t, err)
	require.NotEqual(t, first.File.ID, third.File.ID)
	require.Equal(t, 2, blobCount(t, fs))
}

func TestUploadConcurrentIdenticalBytes(t *testing.T) {
	svc, fs := newTestFileService(t)
	ctx := context.Background()

	const uploads = 8
	ids := make([]string, uploads)
	fresh := make([]bool, uploads)
	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Upload(ctx, "same.txt", []byte("identical payload"))
			require.NoError(t, err)
			ids[i] = res.File.ID
			fresh[i] = !res.Existing
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < uploads; i++ {
		require.Equal(t, ids[0], ids[i])
		if fresh[i] {
			created++
		}
	}
	require.Equal(t, 1, created)
	require.Equal(t, 1, blobCount(t, fs))
}

func TestUploadRequiresName(t *testing.T) {
	svc, _ := newTestFileService(t)
	_, err := svc.Upload(context.Background(), "  ", []byte("x"))
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestDownload(t *testing.T) {
	svc, _ := newTestFileService(t)
	ctx := context.Background()

	up, err := svc.Upload(ctx, "a.txt", []byte("payload"))
	require.NoError(t, err)
	rec, data, err := svc.Download(ctx, up.File.ID)
	require.NoError(t, err)
	require.Equal(t, "a.txt", rec.Name)
	require.Equal(t, "payload", string(data))

	_, _, err = svc.Download(ctx, "unknown")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
