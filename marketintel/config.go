package marketintel

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config configures the marketintel service. Zero fields take the defaults
// listed on each field.
type Config struct {
	DBPath        string           `yaml:"db_path"`        // Default: data/marketintel.db.
	RedisURL      string           `yaml:"redis_url"`      // Empty: in-process cache.
	HTTPAddr      string           `yaml:"http_addr"`      // Default: :8090.
	RetentionDays int              `yaml:"retention_days"` // Observation retention. Default: 90.
	Fetch         FetchConfig      `yaml:"fetch"`
	Browser       BrowserConfig    `yaml:"browser"`
	Thresholds    ThresholdsConfig `yaml:"thresholds"`
	Jobs          JobsConfig       `yaml:"jobs"`
	Schedule      ScheduleConfig   `yaml:"schedule"`
	ExtraDomains  DomainsConfig    `yaml:"extra_domains"`
}

// FetchConfig tunes page retrieval.
type FetchConfig struct {
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
	BaseDelay time.Duration `yaml:"base_delay"`
	Jitter    time.Duration `yaml:"jitter"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// BrowserConfig enables the headless-browser fetch strategy.
type BrowserConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Remote          string        `yaml:"remote"` // DevTools URL; empty launches a local Chrome
	PageLoadTimeout time.Duration `yaml:"page_load_timeout"`
	WaitTimeout     time.Duration `yaml:"wait_timeout"`
}

// ThresholdsConfig holds the classification and alerting thresholds.
type ThresholdsConfig struct {
	PriceChangePercent      float64 `yaml:"price_change_percent"`
	SentimentPositive       float64 `yaml:"sentiment_positive"`
	SentimentNegative       float64 `yaml:"sentiment_negative"`
	AnomalyZScore           float64 `yaml:"anomaly_zscore"`
	AlertPriceChangePercent float64 `yaml:"alert_price_change_percent"`
	// AvailabilityDefault is the stock status when no phrase matches. Default: true.
	AvailabilityDefault *bool `yaml:"availability_default"`
}

// JobsConfig tunes the background queue.
type JobsConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	Workers     int           `yaml:"workers"`
	Timeout     time.Duration `yaml:"timeout"` // per scheduled run. Default: 1h.
}

// ScheduleConfig holds the cron expressions (UTC) of the periodic jobs.
// The value "off" disables a job.
type ScheduleConfig struct {
	Scrape        string `yaml:"scrape"`
	DailyReports  string `yaml:"daily_reports"`
	WeeklyReports string `yaml:"weekly_reports"`
	Cleanup       string `yaml:"cleanup"`
}

// DomainsConfig routes extra domains to extractor families.
type DomainsConfig struct {
	Ecommerce []string `yaml:"ecommerce"`
	News      []string `yaml:"news"`
	Social    []string `yaml:"social"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "data/marketintel.db"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8090"
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 90
	}

	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "MarketIntel-Bot/1.0"
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 10 * 1024 * 1024
	}
	if c.Fetch.BaseDelay == 0 {
		c.Fetch.BaseDelay = 2 * time.Second
	}
	if c.Fetch.Jitter == 0 {
		c.Fetch.Jitter = time.Second
	}
	if c.Fetch.CacheTTL <= 0 {
		c.Fetch.CacheTTL = time.Hour
	}

	if c.Browser.PageLoadTimeout <= 0 {
		c.Browser.PageLoadTimeout = 30 * time.Second
	}
	if c.Browser.WaitTimeout <= 0 {
		c.Browser.WaitTimeout = 10 * time.Second
	}

	if c.Thresholds.PriceChangePercent <= 0 {
		c.Thresholds.PriceChangePercent = 5
	}
	if c.Thresholds.SentimentPositive == 0 {
		c.Thresholds.SentimentPositive = 0.6
	}
	if c.Thresholds.SentimentNegative == 0 {
		c.Thresholds.SentimentNegative = 0.4
	}
	if c.Thresholds.AnomalyZScore <= 0 {
		c.Thresholds.AnomalyZScore = 2.0
	}
	if c.Thresholds.AlertPriceChangePercent <= 0 {
		c.Thresholds.AlertPriceChangePercent = 5
	}
	if c.Thresholds.AvailabilityDefault == nil {
		t := true
		c.Thresholds.AvailabilityDefault = &t
	}

	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = 3
	}
	if c.Jobs.BaseBackoff <= 0 {
		c.Jobs.BaseBackoff = 60 * time.Second
	}
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 5
	}
	if c.Jobs.Timeout <= 0 {
		c.Jobs.Timeout = time.Hour
	}

	if c.Schedule.Scrape == "" {
		c.Schedule.Scrape = "@hourly"
	}
	if c.Schedule.DailyReports == "" {
		c.Schedule.DailyReports = "0 6 * * *"
	}
	if c.Schedule.WeeklyReports == "" {
		c.Schedule.WeeklyReports = "0 7 * * 1"
	}
	if c.Schedule.Cleanup == "" {
		c.Schedule.Cleanup = "0 3 * * 0"
	}
}

// validate rejects settings that would make the service misbehave.
func (c *Config) validate() error {
	if c.Thresholds.SentimentNegative >= c.Thresholds.SentimentPositive {
		return fmt.Errorf("%w: sentiment_negative (%v) must be below sentiment_positive (%v)",
			ErrValidation, c.Thresholds.SentimentNegative, c.Thresholds.SentimentPositive)
	}
	if c.Fetch.BaseDelay < 0 || c.Fetch.Jitter < 0 {
		return fmt.Errorf("%w: fetch delays must not be negative", ErrValidation)
	}
	return nil
}

// LoadConfig reads a YAML configuration file. An empty path returns the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
