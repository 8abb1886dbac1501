package canvas

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.ics":
			w.Header().Set("Content-Type", "text/calendar")
			_, _ = io.WriteString(w, feedFixture)
		case "/slow.ics":
			time.Sleep(200 * time.Millisecond)
			_, _ = io.WriteString(w, feedFixture)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(100 * time.Millisecond)
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		r, err := fetcher.Fetch(ctx, srv.URL+"/feed.ics")
		require.NoError(t, err)
		events, err := Parse(r, time.UTC)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, srv.URL+"/missing.ics")
		assert.EqualError(t, err, "canvas feed returned 404")
	})

	t.Run("timeout", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, srv.URL+"/slow.ics")
		assert.Error(t, err)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, "http://[::1]:namedport")
		assert.Error(t, err)
	})
}
