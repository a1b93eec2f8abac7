package marketintel

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath != "data/marketintel.db" || cfg.HTTPAddr != ":8090" {
		t.Errorf("paths: got %q %q", cfg.DBPath, cfg.HTTPAddr)
	}
	if cfg.Fetch.BaseDelay != 2*time.Second || cfg.Fetch.Jitter != time.Second || cfg.Fetch.CacheTTL != time.Hour {
		t.Errorf("fetch: got %+v", cfg.Fetch)
	}
	if cfg.Thresholds.SentimentPositive != 0.6 || cfg.Thresholds.SentimentNegative != 0.4 ||
		cfg.Thresholds.AnomalyZScore != 2.0 || !*cfg.Thresholds.AvailabilityDefault {
		t.Errorf("thresholds: got %+v", cfg.Thresholds)
	}
	if cfg.Jobs.Workers != 5 || cfg.Jobs.MaxAttempts != 3 || cfg.Jobs.BaseBackoff != time.Minute {
		t.Errorf("jobs: got %+v", cfg.Jobs)
	}
	if cfg.Schedule.Scrape != "@hourly" || cfg.Schedule.Cleanup != "0 3 * * 0" {
		t.Errorf("schedule: got %+v", cfg.Schedule)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketintel.yaml")
	data := `
db_path: /var/lib/mi.db
redis_url: redis://localhost:6379/0
retention_days: 30
fetch:
  base_delay: 500ms
  cache_ttl: 2h
browser:
  enabled: true
  page_load_timeout: 45s
thresholds:
  price_change_percent: 3
  availability_default: false
jobs:
  workers: 2
schedule:
  scrape: "*/30 * * * *"
  cleanup: "off"
extra_domains:
  ecommerce: [shop.example.com]
  news: [news.example.com]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath != "/var/lib/mi.db" || cfg.RedisURL != "redis://localhost:6379/0" || cfg.RetentionDays != 30 {
		t.Errorf("top level: got %+v", cfg)
	}
	if cfg.Fetch.BaseDelay != 500*time.Millisecond || cfg.Fetch.CacheTTL != 2*time.Hour {
		t.Errorf("fetch: got %+v", cfg.Fetch)
	}
	if !cfg.Browser.Enabled || cfg.Browser.PageLoadTimeout != 45*time.Second {
		t.Errorf("browser: got %+v", cfg.Browser)
	}
	if cfg.Thresholds.PriceChangePercent != 3 || *cfg.Thresholds.AvailabilityDefault {
		t.Errorf("thresholds: got %+v", cfg.Thresholds)
	}
	if cfg.Jobs.Workers != 2 || cfg.Schedule.Scrape != "*/30 * * * *" || cfg.Schedule.Cleanup != "off" {
		t.Errorf("jobs/schedule: got %+v %+v", cfg.Jobs, cfg.Schedule)
	}
	if len(cfg.ExtraDomains.Ecommerce) != 1 || cfg.ExtraDomains.News[0] != "news.example.com" {
		t.Errorf("extra domains: got %+v", cfg.ExtraDomains)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file: want error")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("fetch: [unclosed"), 0o600)
	if _, err := LoadConfig(path); err == nil {
		t.Error("bad yaml: want error")
	}

	os.WriteFile(path, []byte("thresholds:\n  sentiment_positive: 0.2\n"), 0o600)
	if _, err := LoadConfig(path); !errors.Is(err, ErrValidation) {
		t.Errorf("positive below negative: got %v", err)
	}
}
