package marketintel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/marketintel/dbopen"
)

func testConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			BaseDelay: time.Nanosecond,
			Jitter:    time.Nanosecond,
			CacheTTL:  time.Nanosecond, // every scrape refetches
		},
		Jobs:         JobsConfig{MaxAttempts: 2, BaseBackoff: time.Millisecond},
		ExtraDomains: DomainsConfig{Ecommerce: []string{"127.0.0.1"}},
	}
}

func setupService(t *testing.T, cfg *Config, opts ...ServiceOption) *Service {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	svc, err := New(dbopen.OpenMemory(t), cfg, nil, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

// shop serves a generic product page whose price can change between scrapes.
type shop struct {
	mu    sync.Mutex
	price string
	hits  int
	srv   *httptest.Server
}

func newShop(t *testing.T, price string) *shop {
	t.Helper()
	s := &shop{price: price}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.hits++
		fmt.Fprintf(w, `<html><body><h1>Acme Widget</h1><span class="price">%s</span></body></html>`, s.price)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *shop) setPrice(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price = p
}

func seed(t *testing.T, svc *Service, url string) (*Company, *Product) {
	t.Helper()
	ctx := context.Background()
	c := &Company{Name: "Acme", Domain: "acme.test", Industry: "tools"}
	if err := svc.CreateCompany(ctx, c); err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	p := &Product{CompanyID: c.ID, Name: "Widget", Category: "widgets", URL: url}
	if err := svc.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	return c, p
}

func TestNew_DefaultsAndSchedule(t *testing.T) {
	svc := setupService(t, nil)
	cfg := svc.Config()
	if cfg.RetentionDays != 90 || cfg.Thresholds.PriceChangePercent != 5 || cfg.Fetch.UserAgent != "MarketIntel-Bot/1.0" {
		t.Errorf("defaults: got %+v", cfg)
	}
	want := []string{JobCleanup, JobDailyReports, JobScrapeAll, JobWeeklyReports}
	got := svc.ScheduledJobs()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("jobs: got %v, want %v", got, want)
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Thresholds.SentimentPositive = 0.3
	cfg.Thresholds.SentimentNegative = 0.5
	if _, err := New(dbopen.OpenMemory(t), cfg, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("inverted sentiment thresholds: got %v", err)
	}

	cfg = testConfig()
	cfg.Schedule.Scrape = "every now and then"
	if _, err := New(dbopen.OpenMemory(t), cfg, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("bad cron spec: got %v", err)
	}
}

func TestNew_ScheduleOff(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.Cleanup = "off"
	svc := setupService(t, cfg)
	for _, j := range svc.ScheduledJobs() {
		if j == JobCleanup {
			t.Error("cleanup should be disabled")
		}
	}
}

func TestCompanies_CompetitorReferences(t *testing.T) {
	// WHAT: competitor_to must exist, must not be self and must not close a cycle.
	svc := setupService(t, nil)
	ctx := context.Background()

	a := &Company{Name: "Alpha"}
	if err := svc.CreateCompany(ctx, a); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if !a.Active || a.ID == "" {
		t.Errorf("created company: got %+v", a)
	}
	b := &Company{Name: "Beta", CompetitorTo: a.ID}
	if err := svc.CreateCompany(ctx, b); err != nil {
		t.Fatalf("create b: %v", err)
	}
	c := &Company{Name: "Gamma", CompetitorTo: b.ID}
	if err := svc.CreateCompany(ctx, c); err != nil {
		t.Fatalf("create c: %v", err)
	}

	// a → c → b → a
	a.CompetitorTo = c.ID
	if err := svc.UpdateCompany(ctx, a); !errors.Is(err, ErrValidation) {
		t.Errorf("cycle: got %v, want ErrValidation", err)
	}
	a.CompetitorTo = a.ID
	if err := svc.UpdateCompany(ctx, a); !errors.Is(err, ErrValidation) {
		t.Errorf("self: got %v, want ErrValidation", err)
	}
	if err := svc.CreateCompany(ctx, &Company{Name: "Delta", CompetitorTo: "cmp_missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown reference: got %v, want ErrNotFound", err)
	}
	if err := svc.CreateCompany(ctx, &Company{Name: "  "}); !errors.Is(err, ErrValidation) {
		t.Errorf("blank name: got %v, want ErrValidation", err)
	}

	// Re-pointing to a company outside the chain is fine.
	d := &Company{Name: "Delta"}
	svc.CreateCompany(ctx, d)
	a.CompetitorTo = d.ID
	if err := svc.UpdateCompany(ctx, a); err != nil {
		t.Errorf("valid update: %v", err)
	}
}

func TestCompanies_Deactivate(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()
	c, p := seed(t, svc, "")

	if err := svc.DeactivateCompany(ctx, c.ID); err != nil {
		t.Fatalf("DeactivateCompany: %v", err)
	}
	active, _ := svc.ListCompanies(ctx, true)
	all, _ := svc.ListCompanies(ctx, false)
	if len(active) != 0 || len(all) != 1 {
		t.Errorf("list: active=%d all=%d", len(active), len(all))
	}
	// Products survive the deactivation of their company.
	if _, err := svc.GetProduct(ctx, p.ID); err != nil {
		t.Errorf("product after company deactivation: %v", err)
	}
	if err := svc.DeactivateCompany(ctx, "cmp_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: got %v", err)
	}
}

func TestProducts_Admin(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()
	c, _ := seed(t, svc, "")

	p := &Product{CompanyID: c.ID, Name: "Gadget", URL: "HTTPS://Shop.Example.COM:443/item?id=1#reviews",
		ConfigJSON: `{"scraper_type":"ecommerce","selectors":{"price":".cost"}}`}
	if err := svc.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if p.URL != "https://shop.example.com/item?id=1" {
		t.Errorf("url: got %q", p.URL)
	}

	if err := svc.CreateProduct(ctx, &Product{CompanyID: "cmp_missing", Name: "X"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown company: got %v", err)
	}
	if err := svc.CreateProduct(ctx, &Product{CompanyID: c.ID, Name: "X", ConfigJSON: "{nope"}); !errors.Is(err, ErrValidation) {
		t.Errorf("bad config: got %v", err)
	}
	if err := svc.CreateProduct(ctx, &Product{CompanyID: c.ID, Name: "X", URL: "ftp://files.example.com/x"}); !errors.Is(err, ErrValidation) {
		t.Errorf("bad scheme: got %v", err)
	}

	p.Name = "Gadget Pro"
	p.CompanyID = ""
	if err := svc.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	got, _ := svc.GetProduct(ctx, p.ID)
	if got.Name != "Gadget Pro" || got.CompanyID != c.ID || !got.Active {
		t.Errorf("after update: got %+v", got)
	}

	if err := svc.DeactivateProduct(ctx, p.ID); err != nil {
		t.Fatalf("DeactivateProduct: %v", err)
	}
	active, _ := svc.ListProducts(ctx, c.ID, true)
	all, _ := svc.ListProducts(ctx, c.ID, false)
	if len(active) != 1 || len(all) != 2 {
		t.Errorf("list: active=%d all=%d", len(active), len(all))
	}
	if _, err := svc.ListProducts(ctx, "cmp_missing", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("list for missing company: got %v", err)
	}

	// Moving a product to another company.
	other := &Company{Name: "Globex"}
	if err := svc.CreateCompany(ctx, other); err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	p.CompanyID = other.ID
	if err := svc.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("move product: %v", err)
	}
	if moved, _ := svc.ListProducts(ctx, other.ID, false); len(moved) != 1 || moved[0].ID != p.ID {
		t.Errorf("after move: got %v", moved)
	}
	p.CompanyID = "cmp_missing"
	if err := svc.UpdateProduct(ctx, p); !errors.Is(err, ErrNotFound) {
		t.Errorf("move to missing company: got %v", err)
	}
}

func TestScrape_PersistsAndAlerts(t *testing.T) {
	// WHAT: two scrapes at $100 then $110 give a 2-point increasing trend and one alert.
	svc := setupService(t, nil)
	ctx := context.Background()
	s := newShop(t, "$100.00")
	_, p := seed(t, svc, s.srv.URL+"/widget")

	res, err := svc.ScrapeProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("first scrape: %v", err)
	}
	if !res.Success || res.ObservationsWritten != 2 || res.Family != "ecommerce" {
		t.Errorf("first result: got %+v", res)
	}
	s.setPrice("$110.00")
	if _, err := svc.ScrapeProduct(ctx, p.ID); err != nil {
		t.Fatalf("second scrape: %v", err)
	}
	if s.hits != 2 {
		t.Errorf("network hits: got %d, want 2", s.hits)
	}

	prices, err := svc.ListObservations(ctx, p.ID, "price", 1, 0)
	if err != nil || len(prices) != 2 {
		t.Fatalf("observations: %d, %v", len(prices), err)
	}
	if *prices[0].Value != 110 || prices[0].Source != "ecommerce" {
		t.Errorf("newest observation: got %v from %s", *prices[0].Value, prices[0].Source)
	}

	trend, err := svc.PriceTrend(ctx, p.ID, 7)
	if err != nil {
		t.Fatalf("PriceTrend: %v", err)
	}
	if trend.Trend != "increasing" || trend.PriceChangePercent != 10 || trend.CurrentPrice != 110 {
		t.Errorf("trend: got %+v", trend)
	}

	alerts, err := svc.ListAlerts(ctx, p.ID, 0)
	if err != nil || len(alerts) != 1 {
		t.Fatalf("alerts: %v, %v", alerts, err)
	}
	if alerts[0].ChangePercent != 10 || alerts[0].PreviousValue != 100 {
		t.Errorf("alert: got %+v", alerts[0])
	}
	if got := testutil.ToFloat64(svc.metrics.AlertsTotal.WithLabelValues("price_change")); got != 1 {
		t.Errorf("alerts metric: got %v", got)
	}
	if got := testutil.ToFloat64(svc.metrics.ScrapesTotal.WithLabelValues("ecommerce", "success")); got != 2 {
		t.Errorf("scrapes metric: got %v", got)
	}

	st, err := svc.ScrapeStats(ctx)
	if err != nil {
		t.Fatalf("ScrapeStats: %v", err)
	}
	if st.ActiveProducts != 1 || st.DataPointsLast24h != 4 || st.DataPointsBySource["ecommerce"] != 4 {
		t.Errorf("stats: got %+v", st)
	}
}

func TestScrape_ClockAheadOfWallClock(t *testing.T) {
	// WHAT: a service clock running ahead of the host still persists its scrapes.
	// WHY: collection and creation times must come from the same clock, or the
	// store rejects the batch as collected in the future.
	at := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	svc := setupService(t, nil, WithClock(func() time.Time { return at }))
	ctx := context.Background()
	s := newShop(t, "$42.00")
	_, p := seed(t, svc, s.srv.URL+"/widget")

	res, err := svc.ScrapeProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("ScrapeProduct: %v", err)
	}
	if !res.Success || res.ObservationsWritten != 2 {
		t.Fatalf("result: got %+v, want success with 2 observations", res)
	}
	prices, err := svc.ListObservations(ctx, p.ID, "price", 1, 0)
	if err != nil || len(prices) != 1 {
		t.Fatalf("observations: %d, %v", len(prices), err)
	}
	if prices[0].CollectedAt != at.UnixMilli() || prices[0].CreatedAt != at.UnixMilli() {
		t.Errorf("timestamps: got collected=%d created=%d, want %d",
			prices[0].CollectedAt, prices[0].CreatedAt, at.UnixMilli())
	}
}

func TestScrape_Errors(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()
	c, noURL := seed(t, svc, "")

	if _, err := svc.ScrapeProduct(ctx, "prd_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: got %v", err)
	}
	if _, err := svc.ScrapeProduct(ctx, noURL.ID); !errors.Is(err, ErrMissingConfiguration) {
		t.Errorf("no url: got %v", err)
	}
	unknown := &Product{CompanyID: c.ID, Name: "Elsewhere", URL: "https://unknown.example.org/x"}
	svc.CreateProduct(ctx, unknown)
	if res, err := svc.ScrapeProduct(ctx, unknown.ID); !errors.Is(err, ErrUnsupportedSource) || res == nil || res.Success {
		t.Errorf("unsupported: got %+v, %v", res, err)
	}

	if _, err := svc.PriceTrend(ctx, "prd_missing", 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("trend of missing product: got %v", err)
	}
	if _, err := svc.PriceTrend(ctx, noURL.ID, 7); !errors.Is(err, ErrNoData) {
		t.Errorf("trend without data: got %v", err)
	}
}

func TestScrapeAllActive_FailureIsolated(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()
	s := newShop(t, "$5.00")
	c, _ := seed(t, svc, s.srv.URL+"/ok")
	svc.CreateProduct(ctx, &Product{CompanyID: c.ID, Name: "Down", URL: "http://127.0.0.1:1/down"})

	sum, err := svc.ScrapeAllActive(ctx)
	if err != nil {
		t.Fatalf("ScrapeAllActive: %v", err)
	}
	if sum.TotalProducts != 2 || sum.Successful != 1 || sum.Failed != 1 {
		t.Errorf("summary: got %+v", sum)
	}
}

func TestEnqueueScrape_RunsThroughQueue(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()
	s := newShop(t, "$42.00")
	_, p := seed(t, svc, s.srv.URL+"/widget")

	if _, err := svc.EnqueueScrape(ctx, p.ID); err != nil {
		t.Fatalf("EnqueueScrape: %v", err)
	}
	if n, _ := svc.QueueLength(ctx); n != 1 {
		t.Errorf("queue length: got %d", n)
	}
	if n, err := svc.RunPendingTasks(ctx); err != nil || n != 1 {
		t.Fatalf("RunPendingTasks: n=%d err=%v", n, err)
	}
	obs, _ := svc.ListObservations(ctx, p.ID, "price", 1, 0)
	if len(obs) != 1 || *obs[0].Value != 42 {
		t.Errorf("observations: got %v", obs)
	}
	if got := testutil.ToFloat64(svc.metrics.TasksTotal.WithLabelValues("scrape_product", "done")); got != 1 {
		t.Errorf("tasks metric: got %v", got)
	}

	svc.DeactivateProduct(ctx, p.ID)
	if _, err := svc.EnqueueScrape(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("inactive product: got %v", err)
	}
}

func TestScheduledReports(t *testing.T) {
	// WHAT: the daily job queues one report per active company; the queue builds them.
	svc := setupService(t, nil)
	ctx := context.Background()
	c, _ := seed(t, svc, "")
	other := &Company{Name: "Other"}
	svc.CreateCompany(ctx, other)
	svc.DeactivateCompany(ctx, other.ID)

	if err := svc.RunJob(JobDailyReports); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if n, _ := svc.QueueLength(ctx); n != 1 {
		t.Fatalf("queued: got %d, want 1", n)
	}
	if _, err := svc.RunPendingTasks(ctx); err != nil {
		t.Fatalf("RunPendingTasks: %v", err)
	}
	list, err := svc.ListReports(ctx, c.ID, ReportDaily, 0)
	if err != nil || len(list) != 1 || list[0].Status != StatusCompleted {
		t.Fatalf("reports: %+v, %v", list, err)
	}
	if err := svc.RunJob("nope"); err == nil {
		t.Error("unknown job: want error")
	}
}

func TestReports(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()
	c, _ := seed(t, svc, "")

	first, err := svc.GenerateReport(ctx, c.ID, ReportDaily, 0)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	second, err := svc.GenerateReport(ctx, c.ID, ReportDaily, 0)
	if err != nil || second.ID != first.ID {
		t.Errorf("daily twice: %s vs %s (%v)", first.ID, second.ID, err)
	}
	if !strings.HasPrefix(first.Title, "Daily Report - Acme - ") {
		t.Errorf("title: got %q", first.Title)
	}

	md, ctype, err := svc.RenderReport(ctx, first.ID, FormatMarkdown)
	if err != nil || !strings.Contains(string(md), "Daily Report") || !strings.HasPrefix(ctype, "text/markdown") {
		t.Errorf("markdown: %q %q %v", md, ctype, err)
	}

	// Without competitors the competitor report fails and keeps no content.
	failed, err := svc.GenerateReport(ctx, c.ID, ReportCompetitor, 0)
	if !errors.Is(err, ErrNoData) || failed == nil || failed.Status != StatusFailed || failed.ContentJSON != nil {
		t.Errorf("competitor: got %+v, %v", failed, err)
	}

	if _, err := svc.GenerateReport(ctx, c.ID, "yearly", 0); !errors.Is(err, ErrValidation) {
		t.Errorf("bad kind: got %v", err)
	}
	if _, err := svc.GenerateReport(ctx, c.ID, ReportCustom, 400); !errors.Is(err, ErrValidation) {
		t.Errorf("bad window: got %v", err)
	}
	if _, err := svc.GenerateReport(ctx, "cmp_missing", ReportDaily, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing company: got %v", err)
	}
	list, _ := svc.ListReports(ctx, c.ID, "", 0)
	if len(list) != 2 {
		t.Errorf("reports: got %d, want 2", len(list))
	}
}

func TestCleanup(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()
	_, p := seed(t, svc, "")

	now := time.Now()
	v := 1.0
	old := &Observation{ID: "obs-old", ProductID: p.ID, Metric: "price", Value: &v, Source: "test",
		CollectedAt: now.AddDate(0, 0, -91).UnixMilli()}
	fresh := &Observation{ID: "obs-new", ProductID: p.ID, Metric: "price", Value: &v, Source: "test",
		CollectedAt: now.AddDate(0, 0, -89).UnixMilli()}
	if err := svc.store.InsertObservations(ctx, []*Observation{old, fresh}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	n, err := svc.Cleanup(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Cleanup: n=%d err=%v", n, err)
	}
	left, _ := svc.ListObservations(ctx, p.ID, "", 365, 0)
	if len(left) != 1 || left[0].ID != "obs-new" {
		t.Errorf("left: got %v", left)
	}
}
