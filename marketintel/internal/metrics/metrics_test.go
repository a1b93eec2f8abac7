package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservers(t *testing.T) {
	m := New()
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.Fetched("plain", true)
	m.Fetched("rendered", false)
	m.Scraped("ecommerce", "success")
	m.Scraped("", "rejected")
	m.ObservationsWritten("price", 3)
	m.ObservationsWritten("price", 2)
	m.Generated("daily", "completed")
	m.AlertRaised("price_change")
	m.TaskDone("scrape_product", "done")

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"cache hit", testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")), 1},
		{"cache miss", testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")), 2},
		{"rendered error", testutil.ToFloat64(m.FetchesTotal.WithLabelValues("rendered", "error")), 1},
		{"unresolved family", testutil.ToFloat64(m.ScrapesTotal.WithLabelValues("unresolved", "rejected")), 1},
		{"price observations", testutil.ToFloat64(m.ObservationsTotal.WithLabelValues("price")), 5},
		{"daily reports", testutil.ToFloat64(m.ReportsTotal.WithLabelValues("daily", "completed")), 1},
		{"alerts", testutil.ToFloat64(m.AlertsTotal.WithLabelValues("price_change")), 1},
		{"tasks", testutil.ToFloat64(m.TasksTotal.WithLabelValues("scrape_product", "done")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.Scraped("news", "success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("status: got %d", rec.Code)
	}
	for _, want := range []string{
		`marketintel_dispatch_scrapes_total{family="news",outcome="success"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition: missing %q", want)
		}
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	// WHY: tests and multiple services in one process must not collide on registration.
	a, b := New(), New()
	a.AlertRaised("price_change")
	if got := testutil.ToFloat64(b.AlertsTotal.WithLabelValues("price_change")); got != 0 {
		t.Errorf("second registry: got %v, want 0", got)
	}
}
