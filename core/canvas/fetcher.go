package canvas

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

var maxFeedSize int64 = 10 << 20

// Fetcher downloads calendar feeds.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.Reader, error)
}

type httpFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) Fetcher {
	return &httpFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch GETs `url`. Any status but 200 is an error.
func (f *httpFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "text/calendar")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching feed")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("canvas feed returned %d", res.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, maxFeedSize))
	if err != nil {
		return nil, errors.Wrap(err, "reading feed")
	}
	return bytes.NewReader(data), nil
}
