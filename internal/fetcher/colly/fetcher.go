// Package collyfetcher fetches and parses pages using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/music-crawler/internal/document"
	"github.com/JakeFAU/music-crawler/internal/metrics"
	"github.com/JakeFAU/music-crawler/internal/storage"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration

	// ArchivePrefix and RunID name archived pages; see storage.PagePath.
	ArchivePrefix      string
	ArchiveContentType string
	RunID              string
}

// Limiter spaces requests per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLimiter waits on l before every request.
func WithLimiter(l Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithArchive writes every successfully fetched page to store.
func WithArchive(store storage.BlobStore) Option {
	return func(f *Fetcher) { f.archive = store }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) { f.transport = rt }
}

// Fetcher implements crawler.PageFetcher using the Colly collector. It never
// retries; a failed fetch is reported to the caller as is.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	limiter       Limiter
	archive       storage.BlobStore
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type fetchResult struct {
	status int
	body   []byte
	err    error
}

// New builds a Fetcher.
func New(cfg Config, opts ...Option) *Fetcher {
	f := &Fetcher{
		cfg:           cfg,
		transport:     newHTTPTransport(),
		baseCollector: colly.NewCollector(colly.Async(false), colly.AllowURLRevisit()),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.baseCollector.WithTransport(f.transport)
	return f
}

// Fetch downloads url and parses it. Non-2xx responses are errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*document.Document, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return nil, err
		}
	}

	var result fetchResult
	collector := f.buildCollector(&result)
	if err := f.runCollector(ctx, collector, url, &result); err != nil {
		metrics.ObserveFetch(url, statusLabel(result.status), len(result.body))
		return nil, err
	}
	metrics.ObserveFetch(url, statusLabel(result.status), len(result.body))
	if result.status < 200 || result.status > 299 {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, result.status)
	}

	f.archivePage(ctx, url, result.body)

	doc, err := document.Parse(url, result.body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return doc, nil
}

func (f *Fetcher) buildCollector(result *fetchResult) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)

	f.configureCollectorHooks(collector, result)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *fetchResult) {
	hooks.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.status = r.StatusCode
		}
		result.err = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, result *fetchResult) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit %s: %w", url, err)
		}
		if result.err != nil {
			return fmt.Errorf("GET %s (status %d): %w", url, result.status, result.err)
		}
		return nil
	}
}

// archivePage is best effort: a failed upload is logged and counted but
// never fails the fetch.
func (f *Fetcher) archivePage(ctx context.Context, url string, body []byte) {
	if f.archive == nil {
		return
	}
	path := storage.PagePath(f.cfg.ArchivePrefix, f.cfg.RunID, url)
	uri, err := f.archive.PutObject(ctx, path, f.cfg.ArchiveContentType, bytes.NewReader(body))
	if err != nil {
		metrics.ObserveArchive("error")
		f.logger.Warn("archive page failed", zap.String("url", url), zap.Error(err))
		return
	}
	metrics.ObserveArchive("ok")
	f.logger.Debug("archived page", zap.String("url", url), zap.String("uri", uri))
}

func statusLabel(code int) string {
	if code == 0 {
		return "error"
	}
	return strconv.Itoa(code)
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
