package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
)

// Fetcher loads the raw bytes of a stored file. A missing file is reported
// as ErrNotFound; failures worth retrying wrap ErrTransient.
type Fetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

type HTTPFetcher struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPFetcher reads from <baseURL>/files/{id}. A positive perSecond
// throttles outgoing requests.
func NewHTTPFetcher(baseURL string, timeout time.Duration, perSecond float64) *HTTPFetcher {
	f := &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetch file %s: %w: %w", fileID, appErr.ErrTransient, err)
		}
	}
	endpoint := f.baseURL + "/files/" + url.PathEscape(fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch file %s: %w: %w", fileID, appErr.ErrTransient, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read file %s: %w: %w", fileID, appErr.ErrTransient, err)
		}
		return data, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("fetch file %s: %w", fileID, appErr.ErrNotFound)
	}
	return nil, fmt.Errorf("fetch file %s: %s: %w", fileID, resp.Status, appErr.ErrTransient)
}
