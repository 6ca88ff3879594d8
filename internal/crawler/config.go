package crawler

import (
	"fmt"
	"net/url"
	"time"
)

// Config captures the knobs that influence a crawl run. It is decoupled from
// viper so the engine can be built directly in tests.
type Config struct {
	BaseURL        string
	StartPath      string
	Concurrency    int
	RequestTimeout time.Duration
	// MaxPages caps the listing pages walked. Zero means no cap.
	MaxPages int
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("site.base_url must be set")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("site.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("site.base_url must be an http(s) URL, got %q", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("site.base_url must include a host")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0")
	}
	return nil
}
