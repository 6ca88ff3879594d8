package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Site.BaseURL != "https://quotes.toscrape.com" {
		t.Fatalf("unexpected base url %q", cfg.Site.BaseURL)
	}
	if cfg.Crawler.Concurrency != 10 || cfg.Crawler.MaxRetries != 0 || !cfg.Crawler.RespectRobots {
		t.Fatalf("unexpected crawler defaults %+v", cfg.Crawler)
	}
	if cfg.Crawler.RequestTimeout != 15*time.Second {
		t.Fatalf("expected 15s timeout, got %v", cfg.Crawler.RequestTimeout)
	}
	if cfg.Output.Backend != BackendLocal || cfg.Output.Dir != "." {
		t.Fatalf("unexpected output defaults %+v", cfg.Output)
	}
	if cfg.Output.QuotesFile != "quotes.json" || cfg.Output.AuthorsFile != "authors.json" {
		t.Fatalf("unexpected file names %+v", cfg.Output)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
site:
  base_url: http://localhost:8000
  start_path: /tag/love/
crawler:
  concurrency: 4
  user_agent: test-agent
  respect_robots: false
  request_timeout: 3s
  max_retries: 2
  max_pages: 5
  rate_limit_rps: 2.5
output:
  backend: gcs
  gcs_bucket: quotes-bucket
  prefix: runs
db:
  dsn: postgres://localhost/quotes
  max_conns: 8
pubsub:
  project_id: proj
  topic: crawls
logging:
  development: true
  level: debug
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.BaseURL != "http://localhost:8000" || cfg.Site.StartPath != "/tag/love/" {
		t.Fatalf("expected site overrides, got %+v", cfg.Site)
	}
	if cfg.Crawler.Concurrency != 4 || cfg.Crawler.RespectRobots || cfg.Crawler.MaxRetries != 2 {
		t.Fatalf("expected crawler overrides, got %+v", cfg.Crawler)
	}
	if cfg.Crawler.RequestTimeout != 3*time.Second || cfg.Crawler.RateLimitRPS != 2.5 {
		t.Fatalf("expected duration and float decoding, got %+v", cfg.Crawler)
	}
	if cfg.Output.Backend != BackendGCS || cfg.Output.GCSBucket != "quotes-bucket" {
		t.Fatalf("expected gcs output, got %+v", cfg.Output)
	}
	if cfg.DB.MaxConns != 8 || cfg.DB.QuotesTable != "quotes" {
		t.Fatalf("expected db overrides with default tables, got %+v", cfg.DB)
	}
	crawl := cfg.CrawlConfig()
	if crawl.MaxPages != 5 || crawl.Concurrency != 4 {
		t.Fatalf("unexpected crawl config %+v", crawl)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("QUOTES_CRAWLER_CONCURRENCY", "3")
	t.Setenv("QUOTES_OUTPUT_DIR", "/tmp/quotes-out")

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.Concurrency != 3 {
		t.Fatalf("expected env concurrency 3, got %d", cfg.Crawler.Concurrency)
	}
	if cfg.Output.Dir != "/tmp/quotes-out" {
		t.Fatalf("expected env output dir, got %q", cfg.Output.Dir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing config file to fail")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid concurrency", func(c *Config) { c.Crawler.Concurrency = 0 }, "crawler.concurrency"},
		{"invalid timeout", func(c *Config) { c.Crawler.RequestTimeout = 0 }, "crawler.request_timeout"},
		{"negative retries", func(c *Config) { c.Crawler.MaxRetries = -1 }, "crawler.max_retries"},
		{"bad base url", func(c *Config) { c.Site.BaseURL = "quotes.toscrape.com" }, "site.base_url"},
		{"unknown backend", func(c *Config) { c.Output.Backend = "s3" }, "output.backend"},
		{"gcs without bucket", func(c *Config) { c.Output.Backend = BackendGCS }, "output.gcs_bucket"},
		{"half pubsub", func(c *Config) { c.PubSub.ProjectID = "proj" }, "pubsub"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
