package marketintel

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func setupHTTP(t *testing.T) (*Service, *httptest.Server) {
	t.Helper()
	svc := setupService(t, nil)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	svc.RegisterHTTP(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return svc, ts
}

func call(t *testing.T, method, url string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if s, ok := body.(string); ok {
		rd = strings.NewReader(s)
	} else if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	_, ts := setupHTTP(t)
	if code, body := call(t, "GET", ts.URL+"/health", nil); code != 200 || !strings.Contains(string(body), "ok") {
		t.Errorf("health: %d %s", code, body)
	}
	code, body := call(t, "GET", ts.URL+"/metrics", nil)
	if code != 200 || !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("metrics: %d", code)
	}
}

func TestHTTP_CompanyProductFlow(t *testing.T) {
	// WHAT: create, read, update and deactivate through the API, with sentinel status codes.
	_, ts := setupHTTP(t)
	api := ts.URL + "/api"

	code, body := call(t, "POST", api+"/companies", map[string]any{"name": "Acme", "domain": "acme.test"})
	if code != http.StatusCreated {
		t.Fatalf("create company: %d %s", code, body)
	}
	var c Company
	json.Unmarshal(body, &c)

	code, body = call(t, "POST", api+"/products", map[string]any{
		"company_id":      c.ID,
		"name":            "Widget",
		"url":             "https://WWW.Amazon.com/dp/B0001#top",
		"tracking_config": map[string]any{"scraper_type": "ecommerce"},
	})
	if code != http.StatusCreated {
		t.Fatalf("create product: %d %s", code, body)
	}
	var p Product
	json.Unmarshal(body, &p)
	if p.URL != "https://www.amazon.com/dp/B0001" || !strings.Contains(p.ConfigJSON, "ecommerce") {
		t.Errorf("product: got %+v", p)
	}

	if code, _ := call(t, "GET", api+"/products/"+p.ID, nil); code != 200 {
		t.Errorf("get product: %d", code)
	}
	if code, _ := call(t, "GET", api+"/products/prd_missing", nil); code != 404 {
		t.Errorf("missing product: %d", code)
	}
	if code, _ := call(t, "GET", api+"/products/"+p.ID+"/price-trend?days=7", nil); code != 404 {
		t.Errorf("trend without data: %d", code)
	}
	if code, _ := call(t, "POST", api+"/companies", "{not json"); code != 400 {
		t.Errorf("bad json: %d", code)
	}
	if code, _ := call(t, "POST", api+"/companies", map[string]any{"name": "B", "competitor_to": c.ID}); code != 201 {
		t.Errorf("competitor: %d", code)
	}
	code, body = call(t, "PUT", api+"/companies/"+c.ID, map[string]any{"name": "Acme", "competitor_to": c.ID})
	if code != 400 {
		t.Errorf("self competitor: %d %s", code, body)
	}

	code, body = call(t, "GET", api+"/companies/"+c.ID+"/competitors", nil)
	if code != 200 || !strings.Contains(string(body), `"total_competitors":1`) {
		t.Errorf("competitors: %d %s", code, body)
	}

	if code, _ := call(t, "DELETE", api+"/products/"+p.ID, nil); code != 200 {
		t.Errorf("deactivate: %d", code)
	}
	code, body = call(t, "GET", api+"/companies/"+c.ID+"/products", nil)
	if code != 200 || strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("active products after deactivation: %d %s", code, body)
	}
	code, _ = call(t, "POST", api+"/products/"+p.ID+"/scrape", nil)
	if code != 404 {
		t.Errorf("scrape inactive: %d", code)
	}
}

func TestHTTP_ScrapeAndReports(t *testing.T) {
	svc, ts := setupHTTP(t)
	api := ts.URL + "/api"
	s := newShop(t, "$19.99")
	c, p := seed(t, svc, s.srv.URL+"/widget")

	code, body := call(t, "POST", api+"/products/"+p.ID+"/scrape", nil)
	if code != 200 || !strings.Contains(string(body), `"success":true`) {
		t.Fatalf("scrape: %d %s", code, body)
	}
	code, body = call(t, "POST", api+"/products/"+p.ID+"/scrape?async=true", nil)
	if code != http.StatusAccepted || !strings.Contains(string(body), "task_id") {
		t.Errorf("async scrape: %d %s", code, body)
	}
	code, body = call(t, "GET", api+"/products/"+p.ID+"/observations?metric=price", nil)
	if code != 200 || !strings.Contains(string(body), "19.99") {
		t.Errorf("observations: %d %s", code, body)
	}
	if code, _ := call(t, "GET", api+"/market/overview", nil); code != 200 {
		t.Errorf("overview: %d", code)
	}
	if code, _ := call(t, "GET", api+"/scrape/stats", nil); code != 200 {
		t.Errorf("stats: %d", code)
	}

	code, body = call(t, "POST", api+"/reports", map[string]any{"company_id": c.ID, "kind": "custom", "window_days": 3})
	if code != 200 {
		t.Fatalf("generate: %d %s", code, body)
	}
	var rep Report
	json.Unmarshal(body, &rep)
	if rep.Status != StatusCompleted || rep.WindowDays != 3 {
		t.Errorf("report: got %+v", rep)
	}

	code, body = call(t, "POST", api+"/reports/"+rep.ID+"/regenerate?window_days=14", nil)
	json.Unmarshal(body, &rep)
	if code != 200 || rep.WindowDays != 14 {
		t.Errorf("regenerate: %d %+v", code, rep)
	}

	req, _ := http.NewRequest("GET", api+"/reports/"+rep.ID+"/render?format=html", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	html, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") ||
		!strings.Contains(string(html), "Custom Report - Acme - 14 days") {
		t.Errorf("render html: %d %s", resp.StatusCode, html)
	}
	if code, _ := call(t, "GET", api+"/reports/"+rep.ID+"/render?format=pdf", nil); code != 400 {
		t.Errorf("unknown format: %d", code)
	}

	// Competitor report of a company without competitors: failed report, 500.
	code, body = call(t, "POST", api+"/reports", map[string]any{"company_id": c.ID, "kind": "competitor"})
	if code != 500 || !strings.Contains(string(body), `"status":"failed"`) {
		t.Errorf("failed report: %d %s", code, body)
	}
	code, body = call(t, "GET", api+"/companies/"+c.ID+"/reports?kind=custom", nil)
	if code != 200 || strings.Count(string(body), `"id"`) != 1 {
		t.Errorf("company reports: %d %s", code, body)
	}
}
