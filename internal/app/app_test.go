package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/quotes-crawler/internal/app"
	"github.com/JakeFAU/quotes-crawler/internal/config"
	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/storage/memory"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)
	cfg.Crawler.RequestTimeout = 2 * time.Second
	return cfg
}

func newQuotesSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "User-agent: *\nAllow: /\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprint(w, `<html><body>
<div class="quote"><span class="text">“Be yourself.”</span>
<span>by <small class="author">Oscar Wilde</small> <a href="/author/Oscar-Wilde">(about)</a></span>
<div class="tags"><meta class="keywords" content="life,wit"></div></div>
</body></html>`)
	})
	mux.HandleFunc("/author/Oscar-Wilde", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body><h3 class="author-title">Oscar Wilde</h3>
<span class="author-born-date">October 16, 1854</span>
<span class="author-born-location">in Dublin, Ireland</span>
<div class="author-description">Irish poet.</div></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewMemoryBackendRunsCrawl(t *testing.T) {
	t.Parallel()

	srv := newQuotesSite(t)
	cfg := baseConfig(t)
	cfg.Site.BaseURL = srv.URL
	cfg.Output.Backend = config.BackendMemory

	a, err := app.New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	engine, err := a.Engine()
	require.NoError(t, err)
	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Quotes)
	assert.Equal(t, 1, report.Authors)

	blobs, ok := a.BlobStore().(*memory.BlobStore)
	require.True(t, ok)
	data, _, ok := blobs.Object("authors.json")
	require.True(t, ok)
	var authors []crawler.Author
	require.NoError(t, json.Unmarshal(data, &authors))
	require.Len(t, authors, 1)
	assert.Equal(t, "Oscar Wilde", authors[0].FullName)

	families, err := a.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "quotes_crawler_quotes_total")
}

func TestNewLocalBackendWritesFiles(t *testing.T) {
	t.Parallel()

	srv := newQuotesSite(t)
	dir := t.TempDir()
	cfg := baseConfig(t)
	cfg.Site.BaseURL = srv.URL
	cfg.Output.Dir = dir

	a, err := app.New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	engine, err := a.Engine()
	require.NoError(t, err)
	_, err = engine.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "quotes.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"author": "Oscar Wilde"`)
	_, err = os.Stat(filepath.Join(dir, "authors.json"))
	require.NoError(t, err)
}

func TestNewRootFailureReturnsRootError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	cfg := baseConfig(t)
	cfg.Site.BaseURL = srv.URL
	cfg.Crawler.RespectRobots = false
	cfg.Output.Backend = config.BackendMemory

	a, err := app.New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	engine, err := a.Engine()
	require.NoError(t, err)
	_, err = engine.Run(context.Background())
	require.ErrorIs(t, err, crawler.ErrRootPage)
}

func TestNewConfigErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "gcs backend missing bucket",
			mutate: func(c *config.Config) { c.Output.Backend = config.BackendGCS },
			want:   "output.gcs_bucket",
		},
		{
			name:   "unknown backend",
			mutate: func(c *config.Config) { c.Output.Backend = "ftp" },
			want:   "unknown output.backend",
		},
		{
			name: "invalid postgres dsn",
			mutate: func(c *config.Config) {
				c.Output.Backend = config.BackendMemory
				c.DB.DSN = "postgres://bad host/"
			},
			want: "record sink",
		},
		{
			name: "invalid table name",
			mutate: func(c *config.Config) {
				c.Output.Backend = config.BackendMemory
				c.DB.DSN = "postgres://localhost/quotes"
				c.DB.QuotesTable = "quotes; drop table authors"
			},
			want: "invalid table name",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig(t)
			tc.mutate(&cfg)
			a, err := app.New(context.Background(), cfg, zaptest.NewLogger(t))
			require.ErrorContains(t, err, tc.want)
			assert.Nil(t, a)
		})
	}
}
