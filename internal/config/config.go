// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// EnvPrefix is prepended to every environment override, e.g.
// QUOTES_CRAWLER_CONCURRENCY.
const EnvPrefix = "QUOTES"

// Output backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Output  OutputConfig  `mapstructure:"output"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SiteConfig names the site being crawled.
type SiteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	StartPath string `mapstructure:"start_path"`
}

// CrawlerConfig governs the crawl engine and fetcher.
type CrawlerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	UserAgent      string        `mapstructure:"user_agent"`
	RespectRobots  bool          `mapstructure:"respect_robots"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	MaxPages       int           `mapstructure:"max_pages"`
	MaxBodyBytes   int           `mapstructure:"max_body_bytes"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// OutputConfig selects where the two JSON documents are written.
type OutputConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	QuotesFile  string `mapstructure:"quotes_file"`
	AuthorsFile string `mapstructure:"authors_file"`
}

// DBConfig enables the Postgres record sink when DSN is set.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	QuotesTable  string `mapstructure:"quotes_table"`
	AuthorsTable string `mapstructure:"authors_table"`
	MaxConns     int32  `mapstructure:"max_conns"`
}

// PubSubConfig enables the crawl summary notification when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls the Prometheus textfile dump.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// New returns a Viper instance with defaults and environment overrides wired.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads the optional config file at path into v and decodes the result.
// Flags bound to v before the call take precedence over file values.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = New()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Every key gets a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://quotes.toscrape.com")
	v.SetDefault("site.start_path", "")
	v.SetDefault("crawler.concurrency", crawler.DefaultCapacity)
	v.SetDefault("crawler.user_agent", "quotes-crawler/1.0")
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.request_timeout", 15*time.Second)
	v.SetDefault("crawler.max_retries", 0)
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("crawler.max_body_bytes", 10*1024*1024)
	v.SetDefault("crawler.rate_limit_rps", 0)
	v.SetDefault("crawler.rate_limit_burst", 1)
	v.SetDefault("output.backend", BackendLocal)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("output.prefix", "")
	v.SetDefault("output.quotes_file", "quotes.json")
	v.SetDefault("output.authors_file", "authors.json")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.quotes_table", "quotes")
	v.SetDefault("db.authors_table", "authors")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.CrawlConfig().Validate(); err != nil {
		return err
	}
	if c.Crawler.MaxRetries < 0 {
		return fmt.Errorf("crawler.max_retries must be >= 0")
	}
	if c.Crawler.MaxBodyBytes < 0 {
		return fmt.Errorf("crawler.max_body_bytes must be >= 0")
	}
	if c.Crawler.RateLimitRPS < 0 {
		return fmt.Errorf("crawler.rate_limit_rps must be >= 0")
	}
	switch c.Output.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Output.Dir) == "" {
			return fmt.Errorf("output.dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Output.GCSBucket == "" {
			return fmt.Errorf("output.gcs_bucket must be set for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown output.backend %q", c.Output.Backend)
	}
	if c.Output.QuotesFile == "" || c.Output.AuthorsFile == "" {
		return fmt.Errorf("output.quotes_file and output.authors_file must be set")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	return nil
}

// CrawlConfig converts the crawler-facing fields into the engine's config.
func (c Config) CrawlConfig() crawler.Config {
	return crawler.Config{
		BaseURL:        c.Site.BaseURL,
		StartPath:      c.Site.StartPath,
		Concurrency:    c.Crawler.Concurrency,
		RequestTimeout: c.Crawler.RequestTimeout,
		MaxPages:       c.Crawler.MaxPages,
	}
}
