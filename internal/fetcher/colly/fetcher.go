// Package collyfetcher implements watch.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/Kumzy/doctolib-watcher/internal/metrics"
	"github.com/Kumzy/doctolib-watcher/internal/policy/ratelimit"
	"github.com/Kumzy/doctolib-watcher/internal/watch"
)

// browserHeaders mimics a regular browser session; the upstream throttles
// obvious non-browser clients. Accept-Encoding is left to the transport so
// gzip responses are decompressed transparently.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Priority":                  "u=0, i",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Upgrade-Insecure-Requests": "1",
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MaxConns  int
	JitterMin time.Duration
	JitterMax time.Duration
}

// Fetcher implements watch.Fetcher using the Colly collector. Every failure
// mode (transport error, timeout, non-2xx status) collapses into an empty
// FetchResult; retry policy lives with the scheduler, not here.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
	logger        *zap.Logger
}

// New builds a Fetcher. A nil limiter disables per-host pacing.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	metrics.Init()

	// The same dated queries are revisited every cycle, so the collector's
	// visited-URL dedup must be off.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(newHTTPTransport(cfg.MaxConns))

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		limiter:       limiter,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET for one dated query. It sleeps a random
// jitter first (each call its own delay, so concurrent windows spread out),
// then waits for a rate-limit token, then issues the request.
func (f *Fetcher) Fetch(ctx context.Context, url string) watch.FetchResult {
	if !f.pause(ctx, f.jitter()) {
		return watch.FetchResult{}
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			f.logger.Warn("rate limit wait aborted", zap.String("url", url), zap.Error(err))
			return watch.FetchResult{}
		}
	}

	var (
		result   watch.FetchResult
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, url); err != nil {
		metrics.ObserveFetch("transport_error")
		f.logger.Warn("fetch failed", zap.String("url", url), zap.Error(err))
		return watch.FetchResult{}
	}
	if fetchErr != nil {
		metrics.ObserveFetch("http_error")
		f.logger.Warn("fetch returned error status",
			zap.String("url", url),
			zap.Int("status", result.StatusCode),
			zap.Error(fetchErr),
		)
		return watch.FetchResult{}
	}
	metrics.ObserveFetch("ok")
	f.logger.Debug("fetch succeeded",
		zap.String("url", url),
		zap.Int("status", result.StatusCode),
		zap.Duration("duration", result.Duration),
	)
	return result
}

func (f *Fetcher) buildCollector(
	start time.Time,
	result *watch.FetchResult,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}

	collector.OnRequest(func(r *colly.Request) {
		for key, value := range browserHeaders {
			r.Headers.Set(key, value)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		*result = watch.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		*fetchErr = err
	})

	return collector
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// jitter picks a uniformly random delay in [JitterMin, JitterMax].
func (f *Fetcher) jitter() time.Duration {
	min, max := f.cfg.JitterMin, f.cfg.JitterMax
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

// pause sleeps for delay, returning false if the context ended first.
func (f *Fetcher) pause(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func newHTTPTransport(maxConns int) *http.Transport {
	if maxConns <= 0 {
		maxConns = 10
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          maxConns,
		MaxConnsPerHost:       maxConns,
		IdleConnTimeout:       90 * time.Second,
	}
}
