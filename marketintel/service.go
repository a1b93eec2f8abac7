// CLAUDE:SUMMARY Service orchestrator: wires store, cache, fetcher, extractors, dispatcher, analytics, reports, alerts, metrics, queue and cron schedule.
package marketintel

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/marketintel/idgen"
	"github.com/hazyhaar/marketintel/marketintel/internal/alert"
	"github.com/hazyhaar/marketintel/marketintel/internal/analytics"
	"github.com/hazyhaar/marketintel/marketintel/internal/cache"
	"github.com/hazyhaar/marketintel/marketintel/internal/dispatch"
	"github.com/hazyhaar/marketintel/marketintel/internal/extract"
	"github.com/hazyhaar/marketintel/marketintel/internal/fetch"
	"github.com/hazyhaar/marketintel/marketintel/internal/jobs"
	"github.com/hazyhaar/marketintel/marketintel/internal/metrics"
	"github.com/hazyhaar/marketintel/marketintel/internal/report"
	"github.com/hazyhaar/marketintel/marketintel/internal/store"
)

// Service is the marketintel orchestrator.
type Service struct {
	db         *sql.DB
	store      *store.Store
	cache      Cache
	browser    *fetch.Browser
	fetcher    *fetch.Fetcher
	registry   *extract.Registry
	dispatcher *dispatch.Dispatcher
	engine     *analytics.Engine
	reports    *report.Builder
	alerts     *alert.Checker
	queue      *jobs.Queue
	scheduler  *jobs.Scheduler
	metrics    *metrics.Metrics
	logger     *slog.Logger
	config     *Config

	now          func() time.Time
	httpClient   *http.Client
	newCompanyID idgen.Generator
	newProductID idgen.Generator
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithCache sets the shared cache. Default: an in-process cache.
func WithCache(c Cache) ServiceOption {
	return func(svc *Service) { svc.cache = c }
}

// WithClock overrides time.Now for scraping, analytics and reports.
func WithClock(now func() time.Time) ServiceOption {
	return func(svc *Service) { svc.now = now }
}

// WithHTTPClient overrides the client of the plain fetch strategy.
func WithHTTPClient(c *http.Client) ServiceOption {
	return func(svc *Service) { svc.httpClient = c }
}

// OpenCache returns a Redis cache when redisURL is set, an in-process cache
// otherwise.
func OpenCache(ctx context.Context, redisURL string) (Cache, error) {
	if redisURL == "" {
		return cache.NewMemory(), nil
	}
	return cache.NewRedis(ctx, redisURL)
}

// New creates a Service on db and applies the schema.
func New(db *sql.DB, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		db:           db,
		store:        store.NewStore(db),
		metrics:      metrics.New(),
		logger:       logger.With("component", "marketintel"),
		config:       cfg,
		now:          time.Now,
		newCompanyID: idgen.Company,
		newProductID: idgen.Product,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.cache == nil {
		svc.cache = cache.NewMemory()
	}

	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	// Fetch.
	fopts := []fetch.Option{
		fetch.WithCache(svc.cache),
		fetch.WithLogger(logger),
		fetch.WithObserver(svc.metrics),
	}
	if svc.httpClient != nil {
		fopts = append(fopts, fetch.WithClient(svc.httpClient))
	}
	if cfg.Browser.Enabled {
		svc.browser = fetch.NewBrowser(fetch.BrowserConfig{
			RemoteURL:       cfg.Browser.Remote,
			UserAgent:       cfg.Fetch.UserAgent,
			PageLoadTimeout: cfg.Browser.PageLoadTimeout,
			WaitTimeout:     cfg.Browser.WaitTimeout,
			Logger:          logger,
		})
		fopts = append(fopts, fetch.WithRenderer(svc.browser))
	}
	svc.fetcher = fetch.New(fetch.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout,
		MaxBytes:  cfg.Fetch.MaxBytes,
		BaseDelay: cfg.Fetch.BaseDelay,
		Jitter:    cfg.Fetch.Jitter,
		CacheTTL:  cfg.Fetch.CacheTTL,
	}, fopts...)

	// Extractors.
	avail := extract.DefaultAvailability()
	avail.Default = *cfg.Thresholds.AvailabilityDefault
	extractOpts := func(domains []string) []extract.Option {
		return []extract.Option{
			extract.WithAvailability(avail),
			extract.WithExtraDomains(domains...),
			extract.WithLogger(logger),
		}
	}
	svc.registry = extract.NewRegistry(
		extract.NewEcommerce(extractOpts(cfg.ExtraDomains.Ecommerce)...),
		extract.NewNews(extractOpts(cfg.ExtraDomains.News)...),
		extract.NewSocial(extractOpts(cfg.ExtraDomains.Social)...),
	)

	// Alerts run after every persisted batch.
	svc.alerts = alert.New(svc.store, svc.cache,
		alert.WithThreshold(cfg.Thresholds.AlertPriceChangePercent),
		alert.WithObserver(svc.metrics),
		alert.WithLogger(logger),
	)

	svc.dispatcher = dispatch.New(svc.store, svc.fetcher, svc.registry,
		dispatch.WithLogger(logger),
		dispatch.WithObserver(svc.metrics),
		dispatch.WithHook(svc.alerts),
		dispatch.WithClock(svc.now),
		dispatch.WithDomains(extract.Ecommerce, cfg.ExtraDomains.Ecommerce...),
		dispatch.WithDomains(extract.News, cfg.ExtraDomains.News...),
		dispatch.WithDomains(extract.Social, cfg.ExtraDomains.Social...),
	)

	svc.engine = analytics.New(svc.store, analytics.Config{
		PriceChangePercent: cfg.Thresholds.PriceChangePercent,
		SentimentPositive:  cfg.Thresholds.SentimentPositive,
		SentimentNegative:  cfg.Thresholds.SentimentNegative,
		AnomalyZScore:      cfg.Thresholds.AnomalyZScore,
	}, analytics.WithClock(svc.now), analytics.WithLogger(logger))

	svc.reports = report.New(svc.store, svc.engine,
		report.WithLogger(logger),
		report.WithObserver(svc.metrics),
		report.WithClock(svc.now),
	)

	// Background work.
	svc.queue = jobs.NewQueue(db, jobs.QueueConfig{
		Workers:     cfg.Jobs.Workers,
		MaxAttempts: cfg.Jobs.MaxAttempts,
		Backoff:     cfg.Jobs.BaseBackoff,
	}, jobs.WithQueueLogger(logger), jobs.WithQueueObserver(svc.metrics))
	if err := svc.queue.EnsureTable(context.Background()); err != nil {
		return nil, fmt.Errorf("job queue: %w", err)
	}
	svc.queue.Handle(jobs.KindScrapeProduct, svc.handleScrapeTask)
	svc.queue.Handle(jobs.KindGenerateReport, svc.handleReportTask)

	svc.scheduler = jobs.NewScheduler(cfg.Jobs.Timeout, logger)
	if err := svc.schedule(); err != nil {
		return nil, err
	}
	return svc, nil
}

// Start launches the queue workers and the cron schedule. Non-blocking;
// both stop when ctx is cancelled.
func (svc *Service) Start(ctx context.Context) {
	go svc.queue.Run(ctx)
	svc.scheduler.Start()
	go func() {
		<-ctx.Done()
		stop, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc.scheduler.Stop(stop)
	}()
	svc.logger.Info("marketintel: started", "jobs", svc.scheduler.Jobs())
}

// Close releases the browser and the cache connection.
func (svc *Service) Close() error {
	var firstErr error
	if svc.browser != nil {
		if err := svc.browser.Close(); err != nil {
			firstErr = err
		}
	}
	if c, ok := svc.cache.(io.Closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	svc.logger.Info("marketintel: closed")
	return firstErr
}

// Config returns the effective configuration.
func (svc *Service) Config() Config { return *svc.config }

// MetricsHandler serves the Prometheus metrics of this service.
func (svc *Service) MetricsHandler() http.Handler { return svc.metrics.Handler() }
