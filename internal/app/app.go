// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/clock/system"
	"github.com/JakeFAU/quotes-crawler/internal/config"
	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/export"
	collyfetcher "github.com/JakeFAU/quotes-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/quotes-crawler/internal/hash/sha256"
	"github.com/JakeFAU/quotes-crawler/internal/id/uuid"
	"github.com/JakeFAU/quotes-crawler/internal/parser"
	"github.com/JakeFAU/quotes-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/quotes-crawler/internal/policy/simple"
	"github.com/JakeFAU/quotes-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/quotes-crawler/internal/storage/gcs"
	"github.com/JakeFAU/quotes-crawler/internal/storage/local"
	"github.com/JakeFAU/quotes-crawler/internal/storage/memory"
	"github.com/JakeFAU/quotes-crawler/internal/storage/postgres"
)

// App holds the shared services for one process: the output backend, the
// optional record sink and notifier, the fetch stack and the metrics registry.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *crawler.Metrics
	fetcher  crawler.Fetcher
	policy   *simple.Policy
	blobs    crawler.BlobStore
	exporter *export.JSONExporter
	sink     *postgres.RecordSink
	notifier *pubsub.Notifier
	closers  []func() error
}

// New wires every service named by cfg. It fails fast if any configured
// backend cannot be initialized and releases whatever was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (a *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a = &App{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.Close())
			a = nil
		}
	}()

	a.registry.MustRegister(collectors.NewGoCollector())
	a.metrics = crawler.NewMetrics(a.registry)

	if a.blobs, err = a.openBlobStore(ctx); err != nil {
		return a, err
	}
	a.exporter, err = export.NewJSONExporter(a.blobs, export.Config{
		QuotesFile:  cfg.Output.QuotesFile,
		AuthorsFile: cfg.Output.AuthorsFile,
		Hasher:      sha256.New(),
	}, logger)
	if err != nil {
		return a, fmt.Errorf("exporter: %w", err)
	}

	if cfg.DB.DSN != "" {
		logger.Info("connecting to postgres", zap.String("quotes_table", cfg.DB.QuotesTable))
		a.sink, err = postgres.NewRecordSink(ctx, postgres.RecordSinkConfig{
			DSN:             cfg.DB.DSN,
			QuotesTable:     cfg.DB.QuotesTable,
			AuthorsTable:    cfg.DB.AuthorsTable,
			MaxConns:        cfg.DB.MaxConns,
			MaxConnLifetime: 30 * time.Minute,
		})
		if err != nil {
			return a, fmt.Errorf("record sink: %w", err)
		}
		a.closers = append(a.closers, func() error { a.sink.Close(); return nil })
		if err = a.sink.EnsureSchema(ctx); err != nil {
			return a, fmt.Errorf("record sink schema: %w", err)
		}
	}

	if cfg.PubSub.Topic != "" {
		logger.Info("connecting to pubsub", zap.String("topic", cfg.PubSub.Topic))
		a.notifier, err = pubsub.Dial(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			return a, fmt.Errorf("notifier: %w", err)
		}
		a.closers = append(a.closers, a.notifier.Close)
	}

	if a.policy, err = simple.New(cfg.Site.BaseURL); err != nil {
		return a, fmt.Errorf("link policy: %w", err)
	}
	a.fetcher = a.buildFetcher()
	logger.Info("application services initialized",
		zap.String("output_backend", cfg.Output.Backend),
		zap.Bool("record_sink", a.sink != nil),
		zap.Bool("notifier", a.notifier != nil),
	)
	return a, nil
}

func (a *App) openBlobStore(ctx context.Context) (crawler.BlobStore, error) {
	out := a.cfg.Output
	switch out.Backend {
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.logger.Info("using gcs output", zap.String("bucket", out.GCSBucket), zap.String("prefix", out.Prefix))
		return gcs.New(client, gcs.Config{Bucket: out.GCSBucket, Prefix: out.Prefix})
	case config.BackendMemory:
		a.logger.Info("using in-memory output; documents are discarded on exit")
		return memory.NewBlobStore(), nil
	default:
		dir := filepath.Join(out.Dir, out.Prefix)
		a.logger.Info("using local output", zap.String("dir", dir))
		return local.New(local.Config{BaseDir: dir})
	}
}

func (a *App) buildFetcher() crawler.Fetcher {
	cc := a.cfg.Crawler
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cc.RateLimitRPS,
		DefaultBurst: cc.RateLimitBurst,
		OnDelay: func(host string, d time.Duration) {
			a.metrics.ObserveRateLimitDelay(host, d)
			a.logger.Debug("rate limited", zap.String("host", host), zap.Duration("delay", d))
		},
	})
	base := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cc.UserAgent,
		RespectRobots: cc.RespectRobots,
		Timeout:       cc.RequestTimeout,
		MaxBodyBytes:  cc.MaxBodyBytes,
	}, limiter, a.logger.Named("fetcher"))
	return crawler.NewRetryingFetcher(base, crawler.NewExponentialRetryPolicy(cc.MaxRetries), a.logger.Named("retry"))
}

// Engine returns an engine bound to a fresh record store. Each call is one run.
func (a *App) Engine() (*crawler.Engine, error) {
	deps := crawler.Deps{
		Fetcher:  a.fetcher,
		Parser:   parser.New(),
		Policy:   a.policy,
		Store:    memory.NewRecordStore(),
		Exporter: a.exporter,
		Clock:    system.New(),
		IDs:      uuid.New(),
		Metrics:  a.metrics,
	}
	if a.sink != nil {
		deps.Sink = a.sink
	}
	if a.notifier != nil {
		deps.Notifier = a.notifier
	}
	return crawler.NewEngine(a.cfg.CrawlConfig(), deps, a.logger)
}

// Config returns the configuration the services were built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Registry exposes the Prometheus registry the crawl metrics live in.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// BlobStore returns the configured output backend.
func (a *App) BlobStore() crawler.BlobStore {
	return a.blobs
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Close shuts services down in reverse order of creation.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	if err != nil {
		a.logger.Warn("error shutting down services", zap.Error(err))
	}
	return err
}
