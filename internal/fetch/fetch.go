// Package fetch loads web pages for extraction. Pages come from the frozen
// cache when present, then from a badger page cache, and finally from the
// web, either over plain HTTP or through a headless browser.
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/metrics"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/storage"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	// MaxPageSize caps the bytes read from one response.
	MaxPageSize = 5 * 1024 * 1024
)

// Source labels of metrics.PageFetches.
const (
	SourceFrozen = "frozen"
	SourceCache  = "cache"
	SourceHTTP   = "http"
	SourceRender = "render"
	SourceFile   = "file"
)

// ErrOffline is returned for a page that is not cached when the fetcher may
// not go to the web.
var ErrOffline = errors.New("fetch: page not cached and fetching is disabled")

// httpClient is the interface used for HTTP requests (allows testing).
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns a client that follows at most 5 redirects.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// Options configures a Fetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// Delay between two requests to the web.
	Delay time.Duration
	// Render pages with a headless browser instead of plain HTTP.
	Render bool
	// Time to let scripts run before the rendered DOM is read.
	RenderWait time.Duration
	// Offline disables the web entirely.
	Offline bool
	// Freeze writes fetched pages into the frozen cache as well.
	Freeze bool
}

// DefaultOptions returns the fetch defaults.
func DefaultOptions() Options {
	return Options{
		UserAgent:  DefaultUserAgent,
		Timeout:    30 * time.Second,
		Delay:      800 * time.Millisecond,
		RenderWait: 2 * time.Second,
	}
}

// Fetcher implements dataset.PageSource. It is safe for concurrent use.
type Fetcher struct {
	opts   Options
	client httpClient
	store  *storage.Storage
	cache  *PageCache
	render func(ctx context.Context, url string) ([]byte, error)

	mu   sync.Mutex
	last time.Time
}

// New creates a fetcher. store and cache may be nil.
func New(opts Options, store *storage.Storage, cache *PageCache) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	f := &Fetcher{
		opts:   opts,
		client: NewHTTPClient(opts.Timeout),
		store:  store,
		cache:  cache,
	}
	f.render = func(ctx context.Context, url string) ([]byte, error) {
		return Render(ctx, url, f.opts)
	}
	return f
}

// Page returns the HTML of ref.
func (f *Fetcher) Page(ctx context.Context, ref storage.PageRef) ([]byte, error) {
	if f.store != nil && (ref.Frozen() || f.store.HasPage(ref)) {
		html, err := f.store.ReadPage(ref)
		record(SourceFrozen, err)
		if err == nil || ref.Frozen() {
			return html, err
		}
	}
	if ref.URL == "" {
		return nil, fmt.Errorf("fetch: page has neither hashcode nor URL")
	}
	if f.cache != nil {
		html, ok, err := f.cache.Get(ref.URL)
		if err != nil {
			record(SourceCache, err)
			return nil, err
		}
		if ok {
			record(SourceCache, nil)
			return html, nil
		}
	}
	if f.opts.Offline {
		return nil, fmt.Errorf("%w: %s", ErrOffline, ref.URL)
	}
	html, err := f.Fetch(ctx, ref.URL)
	if err != nil {
		return nil, err
	}
	if f.cache != nil {
		if err := f.cache.Put(ref.URL, html); err != nil {
			slog.Warn("Failed to cache page", "url", ref.URL, "error", err)
		}
	}
	if f.opts.Freeze && f.store != nil {
		if err := f.store.WritePage(storage.PageRef{URL: ref.URL, CacheDirectory: ref.CacheDirectory}, html); err != nil {
			slog.Warn("Failed to freeze page", "url", ref.URL, "error", err)
		}
	}
	return html, nil
}

// Sync flushes the page cache, if any.
func (f *Fetcher) Sync() error {
	if f.cache == nil {
		return nil
	}
	return f.cache.Sync()
}

// Fetch downloads url, bypassing every cache.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.opts.Render {
		html, err := f.render(ctx, url)
		record(SourceRender, err)
		if err != nil {
			return nil, fmt.Errorf("fetch: render %s: %w", url, err)
		}
		return html, nil
	}
	html, err := fetchHTML(ctx, f.client, url, f.opts.UserAgent)
	record(SourceHTTP, err)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", url, err)
	}
	slog.Debug("Fetched page", "url", url, "bytes", len(html))
	return html, nil
}

// wait enforces the delay between web requests.
func (f *Fetcher) wait(ctx context.Context) error {
	if f.opts.Delay <= 0 {
		return nil
	}
	f.mu.Lock()
	next := f.last.Add(f.opts.Delay)
	now := time.Now()
	if next.Before(now) {
		next = now
	}
	f.last = next
	f.mu.Unlock()

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func fetchHTML(ctx context.Context, client httpClient, rawURL, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, MaxPageSize))
}

// Load reads a page given as an http(s) URL, a file path, or "-" for stdin.
func (f *Fetcher) Load(ctx context.Context, target string) ([]byte, error) {
	switch {
	case target == "-":
		html, err := io.ReadAll(io.LimitReader(os.Stdin, MaxPageSize))
		record(SourceFile, err)
		return html, err
	case strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://"):
		return f.Page(ctx, storage.PageRef{URL: target})
	default:
		html, err := os.ReadFile(target)
		record(SourceFile, err)
		return html, err
	}
}

func record(source string, err error) {
	result := metrics.OK
	if err != nil {
		result = metrics.Error
	}
	metrics.PageFetches.WithLabelValues(source, result).Inc()
}
