package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
)

func TestHTTPFetcherClassifiesResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/files/ok":
			_, _ = w.Write([]byte("payload"))
		case "/api/v1/files/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	fetcher := NewHTTPFetcher(srv.URL+"/api/v1/", time.Second, 100)
	ctx := context.Background()

	data, err := fetcher.Fetch(ctx, "ok")
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	_, err = fetcher.Fetch(ctx, "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.False(t, appErr.IsTransient(err))

	_, err = fetcher.Fetch(ctx, "broken")
	require.True(t, appErr.IsTransient(err))
}

func TestHTTPFetcherConnectionErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(addr, time.Second, 0).Fetch(context.Background(), "any")
	require.Error(t, err)
	require.True(t, appErr.IsTransient(err))
}
