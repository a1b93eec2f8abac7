// CLAUDE:SUMMARY Page fetcher: cache lookup, politeness delay, plain HTTP or rendered-browser retrieval, cache fill on success.
// Package fetch retrieves raw page content for the extractors.
//
// Every call checks the injected cache first. On a miss the fetcher sleeps
// base delay + random jitter, then retrieves the page either with a plain
// HTTP GET or through a Renderer (headless browser). Only successful
// retrievals are cached. Every failure wraps errs.ErrFetchFailure; the
// fetcher never retries on its own.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hazyhaar/marketintel/marketintel/internal/cache"
	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
)

// Strategy selects how a page is retrieved.
type Strategy string

const (
	// Plain is a single HTTP GET. No JavaScript runs.
	Plain Strategy = "plain"
	// Rendered loads the page in a headless browser and serialises the DOM.
	Rendered Strategy = "rendered"
)

// CacheKeyPrefix namespaces fetched pages in the shared cache.
const CacheKeyPrefix = "scraper:cache:"

// Renderer loads a URL in a browser, optionally waits for a CSS selector,
// and returns the rendered HTML.
type Renderer interface {
	Render(ctx context.Context, pageURL, waitFor string) (string, error)
}

// Config configures the fetcher.
type Config struct {
	UserAgent string        // Default: MarketIntel-Bot/1.0.
	Timeout   time.Duration // Plain request timeout. Default: 30s.
	MaxBytes  int64         // Max body size. Default: 10MB.
	BaseDelay time.Duration // Politeness delay before each network call. Zero disables.
	Jitter    time.Duration // Upper bound of the random extra delay added to BaseDelay.
	CacheTTL  time.Duration // Default: 1h.
}

func (c *Config) defaults() {
	if c.UserAgent == "" {
		c.UserAgent = "MarketIntel-Bot/1.0"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
}

// Request describes one fetch.
type Request struct {
	URL      string
	NoCache  bool              // bypass cache read and write
	Params   map[string]string // appended to the query string and to the cache key
	Strategy Strategy          // Default: Plain.
	WaitFor  string            // CSS selector awaited by the Rendered strategy
	Platform string            // hint carried into logs
}

// Result is the outcome of a successful fetch.
type Result struct {
	Content    string
	FromCache  bool
	StatusCode int
	FetchedAt  time.Time
}

// Observer receives cache and fetch outcomes (metrics).
type Observer interface {
	CacheLookup(hit bool)
	Fetched(strategy string, ok bool)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCache sets the shared content cache. Without it nothing is cached.
func WithCache(c cache.Cache) Option { return func(f *Fetcher) { f.cache = c } }

// WithRenderer enables the Rendered strategy.
func WithRenderer(r Renderer) Option { return func(f *Fetcher) { f.renderer = r } }

// WithClient overrides the HTTP client used by the Plain strategy.
func WithClient(c *http.Client) Option { return func(f *Fetcher) { f.client = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// WithObserver reports cache hits and fetch outcomes.
func WithObserver(o Observer) Option { return func(f *Fetcher) { f.observer = o } }

// WithSleep replaces the politeness sleep (tests).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

// Fetcher retrieves page content.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	cache    cache.Cache
	renderer Renderer
	observer Observer
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// New creates a Fetcher.
func New(cfg Config, opts ...Option) *Fetcher {
	cfg.defaults()
	f := &Fetcher{
		cfg:   cfg,
		sleep: sleepCtx,
		now:   time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	if f.client == nil {
		f.client = &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		}
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With("component", "fetch")
	return f
}

// CanRender reports whether the Rendered strategy is available.
func (f *Fetcher) CanRender() bool { return f.renderer != nil }

// Fetch returns the page content for req.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	target, err := buildURL(req.URL, req.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrFetchFailure, err)
	}
	key := CacheKey(req.URL, req.Params)

	if !req.NoCache && f.cache != nil {
		if content, ok := f.cached(ctx, key); ok {
			f.logger.DebugContext(ctx, "fetch: cache hit", "url", req.URL, "platform", req.Platform)
			return &Result{Content: content, FromCache: true, StatusCode: http.StatusOK, FetchedAt: f.now()}, nil
		}
	}

	if err := f.sleep(ctx, f.politenessDelay()); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrFetchFailure, err)
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = Plain
	}
	if strategy == Rendered && f.renderer == nil {
		f.logger.DebugContext(ctx, "fetch: no renderer, falling back to plain", "url", req.URL)
		strategy = Plain
	}

	var res *Result
	if strategy == Rendered {
		var content string
		content, err = f.renderer.Render(ctx, target, req.WaitFor)
		if err == nil {
			res = &Result{Content: content, StatusCode: http.StatusOK, FetchedAt: f.now()}
		}
	} else {
		res, err = f.get(ctx, target)
	}
	if f.observer != nil {
		f.observer.Fetched(string(strategy), err == nil)
	}
	if err != nil {
		f.logger.WarnContext(ctx, "fetch: failed", "url", req.URL, "strategy", strategy, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrFetchFailure, req.URL, err)
	}

	if !req.NoCache && f.cache != nil {
		f.store(ctx, key, res.Content)
	}
	return res, nil
}

func (f *Fetcher) get(ctx context.Context, target string) (*Result, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	hreq.Header.Set("User-Agent", f.cfg.UserAgent)
	hreq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7")
	hreq.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", f.cfg.MaxBytes)
	}
	return &Result{Content: string(body), StatusCode: resp.StatusCode, FetchedAt: f.now()}, nil
}

type cacheEntry struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func (f *Fetcher) cached(ctx context.Context, key string) (string, bool) {
	raw, ok, err := f.cache.Get(ctx, key)
	if err != nil {
		f.logger.WarnContext(ctx, "fetch: cache read failed", "key", key, "error", err)
	}
	var e cacheEntry
	if ok && err == nil {
		if jerr := json.Unmarshal([]byte(raw), &e); jerr != nil || f.now().Sub(e.Timestamp) >= f.cfg.CacheTTL {
			ok = false
		}
	} else {
		ok = false
	}
	if f.observer != nil {
		f.observer.CacheLookup(ok)
	}
	return e.Content, ok
}

func (f *Fetcher) store(ctx context.Context, key, content string) {
	data, err := json.Marshal(cacheEntry{Content: content, Timestamp: f.now()})
	if err != nil {
		return
	}
	if err := f.cache.Set(ctx, key, string(data), f.cfg.CacheTTL); err != nil {
		f.logger.WarnContext(ctx, "fetch: cache write failed", "key", key, "error", err)
	}
}

func (f *Fetcher) politenessDelay() time.Duration {
	d := f.cfg.BaseDelay
	if f.cfg.Jitter > 0 {
		d += rand.N(f.cfg.Jitter)
	}
	return d
}

// CacheKey derives the deterministic cache key for a URL and its extra params.
func CacheKey(rawURL string, params map[string]string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "\x00%s=%s", k, params[k])
		}
	}
	return fmt.Sprintf("%s%x", CacheKeyPrefix, h.Sum(nil))
}

func buildURL(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
