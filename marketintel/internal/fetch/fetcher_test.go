package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/marketintel/marketintel/internal/cache"
	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
)

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

type stubRenderer struct {
	html    string
	err     error
	waitFor string
}

func (r *stubRenderer) Render(_ context.Context, _ string, waitFor string) (string, error) {
	r.waitFor = waitFor
	return r.html, r.err
}

func newCountingServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if ua := r.Header.Get("User-Agent"); ua != "MarketIntel-Bot/1.0" {
			t.Errorf("user agent: got %q", ua)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetch_CacheHitSkipsNetworkAndDelay(t *testing.T) {
	// WHAT: the second fetch of a URL is served from cache without sleeping.
	// WHY: the cache is checked before any network call, and the politeness delay only guards network calls.
	srv, hits := newCountingServer(t, 200, "<html>ok</html>")
	rec := &sleepRecorder{}
	f := New(Config{BaseDelay: 2 * time.Second, Jitter: time.Second},
		WithCache(cache.NewMemory()), WithSleep(rec.sleep))
	ctx := context.Background()

	first, err := f.Fetch(ctx, Request{URL: srv.URL + "/p"})
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.FromCache || first.Content != "<html>ok</html>" {
		t.Fatalf("first fetch: got %+v", first)
	}

	second, err := f.Fetch(ctx, Request{URL: srv.URL + "/p"})
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !second.FromCache || second.Content != "<html>ok</html>" {
		t.Errorf("second fetch: got %+v, want cached content", second)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("server hits: got %d, want 1", n)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("sleeps: got %d, want 1", len(rec.calls))
	}
	if d := rec.calls[0]; d < 2*time.Second || d >= 3*time.Second {
		t.Errorf("politeness delay: got %v, want [2s, 3s)", d)
	}
}

func TestFetch_NoCacheAlwaysHitsNetwork(t *testing.T) {
	srv, hits := newCountingServer(t, 200, "x")
	rec := &sleepRecorder{}
	f := New(Config{}, WithCache(cache.NewMemory()), WithSleep(rec.sleep))

	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(context.Background(), Request{URL: srv.URL, NoCache: true}); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Errorf("server hits: got %d, want 2", n)
	}
}

func TestFetch_FailureIsNotCached(t *testing.T) {
	// WHAT: an HTTP error yields ErrFetchFailure and leaves the cache empty.
	// WHY: a retry must reach the network again.
	srv, hits := newCountingServer(t, 503, "down")
	c := cache.NewMemory()
	rec := &sleepRecorder{}
	f := New(Config{}, WithCache(c), WithSleep(rec.sleep))

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), Request{URL: srv.URL})
		if !errors.Is(err, errs.ErrFetchFailure) {
			t.Fatalf("fetch %d: got %v, want ErrFetchFailure", i, err)
		}
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Errorf("server hits: got %d, want 2", n)
	}
	if _, ok, _ := c.Get(context.Background(), CacheKey(srv.URL, nil)); ok {
		t.Error("failed fetch was cached")
	}
}

func TestFetch_OversizeBodyFails(t *testing.T) {
	// WHAT: a body over MaxBytes is ErrFetchFailure and is not cached; one at the limit passes.
	// WHY: a truncated page would parse as a different page without any error.
	big, _ := newCountingServer(t, 200, strings.Repeat("x", 65))
	exact, _ := newCountingServer(t, 200, strings.Repeat("x", 64))
	c := cache.NewMemory()
	f := New(Config{MaxBytes: 64}, WithCache(c), WithSleep((&sleepRecorder{}).sleep))

	_, err := f.Fetch(context.Background(), Request{URL: big.URL})
	if !errors.Is(err, errs.ErrFetchFailure) {
		t.Fatalf("oversize: got %v, want ErrFetchFailure", err)
	}
	if _, ok, _ := c.Get(context.Background(), CacheKey(big.URL, nil)); ok {
		t.Error("oversize body was cached")
	}

	res, err := f.Fetch(context.Background(), Request{URL: exact.URL})
	if err != nil {
		t.Fatalf("at limit: %v", err)
	}
	if len(res.Content) != 64 {
		t.Errorf("at limit: got %d bytes, want 64", len(res.Content))
	}
}

func TestFetch_NetworkErrorIsFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := New(Config{Timeout: time.Second}, WithSleep((&sleepRecorder{}).sleep))
	_, err := f.Fetch(context.Background(), Request{URL: url})
	if !errors.Is(err, errs.ErrFetchFailure) {
		t.Errorf("closed server: got %v, want ErrFetchFailure", err)
	}
}

func TestFetch_BadScheme(t *testing.T) {
	f := New(Config{}, WithSleep((&sleepRecorder{}).sleep))
	_, err := f.Fetch(context.Background(), Request{URL: "ftp://example.com/file"})
	if !errors.Is(err, errs.ErrFetchFailure) {
		t.Errorf("ftp url: got %v, want ErrFetchFailure", err)
	}
}

func TestFetch_ExpiredEntryRefetches(t *testing.T) {
	srv, hits := newCountingServer(t, 200, "fresh")
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	f := New(Config{CacheTTL: time.Hour}, WithCache(cache.NewMemory()), WithSleep((&sleepRecorder{}).sleep))
	f.now = func() time.Time { return now }

	f.Fetch(context.Background(), Request{URL: srv.URL})
	now = now.Add(61 * time.Minute)
	res, err := f.Fetch(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.FromCache {
		t.Error("entry older than the TTL was served from cache")
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Errorf("server hits: got %d, want 2", n)
	}
}

func TestFetch_RenderedStrategy(t *testing.T) {
	r := &stubRenderer{html: "<html>rendered</html>"}
	f := New(Config{}, WithRenderer(r), WithSleep((&sleepRecorder{}).sleep))

	res, err := f.Fetch(context.Background(), Request{
		URL: "https://www.amazon.com/dp/X", Strategy: Rendered, WaitFor: ".a-price",
	})
	if err != nil {
		t.Fatalf("rendered fetch: %v", err)
	}
	if res.Content != "<html>rendered</html>" || r.waitFor != ".a-price" {
		t.Errorf("rendered: got %q wait=%q", res.Content, r.waitFor)
	}

	r.err = errors.New("timeout")
	_, err = f.Fetch(context.Background(), Request{URL: "https://www.amazon.com/dp/Y", Strategy: Rendered})
	if !errors.Is(err, errs.ErrFetchFailure) {
		t.Errorf("render failure: got %v, want ErrFetchFailure", err)
	}
}

func TestFetch_RenderedFallsBackToPlain(t *testing.T) {
	srv, hits := newCountingServer(t, 200, "plain")
	f := New(Config{}, WithSleep((&sleepRecorder{}).sleep))
	if f.CanRender() {
		t.Fatal("CanRender without renderer")
	}
	res, err := f.Fetch(context.Background(), Request{URL: srv.URL, Strategy: Rendered})
	if err != nil || res.Content != "plain" || atomic.LoadInt32(hits) != 1 {
		t.Errorf("fallback: got %+v, %v", res, err)
	}
}

func TestFetch_ContextCancelledDuringDelay(t *testing.T) {
	f := New(Config{BaseDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, Request{URL: "https://example.com"})
	if !errors.Is(err, errs.ErrFetchFailure) {
		t.Errorf("cancelled: got %v, want ErrFetchFailure", err)
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("https://x.com/p", map[string]string{"b": "2", "a": "1"})
	b := CacheKey("https://x.com/p", map[string]string{"a": "1", "b": "2"})
	if a != b {
		t.Errorf("param order changed the key: %q vs %q", a, b)
	}
	if a == CacheKey("https://x.com/p", nil) {
		t.Error("params did not change the key")
	}
	if len(a) != len(CacheKeyPrefix)+64 {
		t.Errorf("key length: got %d", len(a))
	}
}

func TestFetch_ParamsInQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Config{}, WithSleep((&sleepRecorder{}).sleep))
	if _, err := f.Fetch(context.Background(), Request{URL: srv.URL + "/search", Params: map[string]string{"q": "acme widget"}}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotQuery != "acme widget" {
		t.Errorf("query: got %q", gotQuery)
	}
}
