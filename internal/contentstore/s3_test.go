package contentstore

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Bucket+"/"+*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3StorePutIfAbsent(t *testing.T) {
	fake := newFakeS3()
	store := newS3Store(fake, "blobs", "/uploads/")
	ctx := context.Background()

	key, err := store.PutIfAbsent(ctx, testFingerprint, ".txt", []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, testFingerprint+".txt", key)
	_, err = store.PutIfAbsent(ctx, testFingerprint, ".txt", []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 1, fake.puts)
	require.Contains(t, fake.objects, "blobs/uploads/"+key)

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestBuildEndpoint(t *testing.T) {
	require.Equal(t, "https://s3.local:9000", buildEndpoint("s3.local:9000", true))
	require.Equal(t, "http://s3.local:9000", buildEndpoint("s3.local:9000", false))
	require.Equal(t, "http://minio", buildEndpoint("http://minio", true))
}
