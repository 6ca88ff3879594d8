package crawler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the crawl instruments. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Fetches       *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	InFlight      prometheus.Gauge
	Quotes        prometheus.Counter
	Authors       *prometheus.CounterVec
	AuthorSkips   prometheus.Counter
	RateLimitWait *prometheus.HistogramVec
}

// NewMetrics creates the crawl instruments and registers them on reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotes_crawler_fetches_total",
			Help: "Fetches issued, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quotes_crawler_fetch_duration_seconds",
			Help:    "Duration of successful fetches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quotes_crawler_inflight_tasks",
			Help: "Governor slots currently held.",
		}),
		Quotes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotes_crawler_quotes_total",
			Help: "Quote records appended to the store.",
		}),
		Authors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotes_crawler_authors_total",
			Help: "Author resolutions, by result.",
		}, []string{"result"}),
		AuthorSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotes_crawler_author_skips_total",
			Help: "Author references skipped because the name was already claimed.",
		}),
		RateLimitWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quotes_crawler_rate_limit_delay_seconds",
			Help:    "Time spent waiting for a per-host rate limit token.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"host"}),
	}
	if reg != nil {
		reg.MustRegister(m.Fetches, m.FetchDuration, m.InFlight, m.Quotes, m.Authors, m.AuthorSkips, m.RateLimitWait)
	}
	return m
}

func (m *Metrics) observeFetch(kind FetchKind, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if IsTransient(err) {
			outcome = "transient"
		}
	} else {
		m.FetchDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
	}
	m.Fetches.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) setInFlight(n int64) {
	if m == nil {
		return
	}
	m.InFlight.Set(float64(n))
}

func (m *Metrics) addQuotes(n int) {
	if m == nil {
		return
	}
	m.Quotes.Add(float64(n))
}

func (m *Metrics) authorResult(result string) {
	if m == nil {
		return
	}
	m.Authors.WithLabelValues(result).Inc()
}

func (m *Metrics) authorSkip() {
	if m == nil {
		return
	}
	m.AuthorSkips.Inc()
}

// ObserveRateLimitDelay records a rate limiter wait. It matches the
// ratelimit.Config OnDelay hook.
func (m *Metrics) ObserveRateLimitDelay(host string, d time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitWait.WithLabelValues(host).Observe(d.Seconds())
}
