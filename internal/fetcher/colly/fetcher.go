// Package collyfetcher implements Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/policy/ratelimit"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// MaxBodyBytes caps the response body. Zero keeps colly's default.
	MaxBodyBytes int
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. limiter may be nil to disable pacing.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	// Deduplication belongs to the record store; retries must be able to
	// revisit a URL.
	c.AllowURLRevisit = true
	if cfg.MaxBodyBytes > 0 {
		c.MaxBodySize = cfg.MaxBodyBytes
	}
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !cfg.RespectRobots

	// Clones share the HTTP backend, so transport and timeout are set once here.
	transport := &robotsAwareTransport{
		base:   newHTTPTransport(),
		logger: logger,
	}
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		limiter:       limiter,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET using Colly.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, request.URL); err != nil {
			return crawler.FetchResponse{}, &crawler.FetchError{
				Kind: crawler.FetchTransient, URL: request.URL, Err: err,
			}
		}
	}

	var (
		result crawler.FetchResponse
		status int
	)
	start := time.Now()
	collector := f.buildCollector(ctx, start, &result, &status)

	if err := f.runCollector(ctx, collector, request.URL, &status); err != nil {
		return crawler.FetchResponse{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	start time.Time,
	result *crawler.FetchResponse,
	status *int,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots

	f.configureCollectorHooks(collector, start, result, status)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *crawler.FetchResponse,
	status *int,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			*status = r.StatusCode
		}
	})
}

// runCollector visits url. status is written by the collector hooks and is
// only read once the visit has returned.
func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, status *int) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return &crawler.FetchError{
			Kind: crawler.FetchTransient,
			URL:  url,
			Err:  fmt.Errorf("colly fetch canceled: %w", ctx.Err()),
		}
	case err := <-done:
		if err != nil {
			return classify(url, *status, fmt.Errorf("colly visit failed: %w", err))
		}
		return nil
	}
}

// classify maps a failed visit onto the crawl error taxonomy. Missing
// responses, timeouts and overload statuses are worth retrying; everything
// else is final.
func classify(rawURL string, status int, err error) *crawler.FetchError {
	fe := &crawler.FetchError{Kind: crawler.FetchPermanent, URL: rawURL, StatusCode: status, Err: err}
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooEarly,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		fe.Kind = crawler.FetchTransient
	case status != 0:
		// Remaining 3xx and 4xx responses.
	case errors.Is(err, colly.ErrRobotsTxtBlocked),
		errors.Is(err, colly.ErrMissingURL),
		errors.Is(err, colly.ErrForbiddenURL),
		errors.Is(err, colly.ErrForbiddenDomain),
		isParseError(err):
	default:
		fe.Kind = crawler.FetchTransient
	}
	return fe
}

func isParseError(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue) && ue.Op == "parse"
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
