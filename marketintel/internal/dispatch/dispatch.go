// CLAUDE:SUMMARY Dispatcher: resolves a product's extractor family, fetches per the family plan, persists fragments as observations.
// Package dispatch runs one scrape unit per product: resolve the extractor
// family, fetch, extract, persist. It never retries; the jobs layer does.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/marketintel/idgen"
	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
	"github.com/hazyhaar/marketintel/marketintel/internal/extract"
	"github.com/hazyhaar/marketintel/marketintel/internal/fetch"
	"github.com/hazyhaar/marketintel/marketintel/internal/store"
)

// Fetcher retrieves page content. *fetch.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*fetch.Result, error)
}

// Hook runs after a batch of observations is persisted for a product.
// Hook failures are logged by the hook itself and never fail the scrape.
type Hook interface {
	AfterPersist(ctx context.Context, p *store.Product, obs []*store.Observation)
}

// Observer receives scrape outcomes (metrics).
type Observer interface {
	Scraped(family, outcome string)
	ObservationsWritten(metric string, n int)
}

// Outcome labels reported to the Observer.
const (
	OutcomeSuccess     = "success"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeNoData      = "no_data"
	OutcomeRejected    = "rejected"
	OutcomeError       = "error"
)

type route struct {
	family  string
	domains []string
}

// Dispatcher runs scrape units.
type Dispatcher struct {
	store    *store.Store
	fetcher  Fetcher
	registry *extract.Registry
	routes   []route
	hooks    []Hook
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	newID    idgen.Generator
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

// WithHook adds a post-persist hook.
func WithHook(h Hook) Option { return func(d *Dispatcher) { d.hooks = append(d.hooks, h) } }

// WithObserver reports outcomes.
func WithObserver(o Observer) Option { return func(d *Dispatcher) { d.observer = o } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

// WithIDGenerator overrides observation ID generation.
func WithIDGenerator(g idgen.Generator) Option { return func(d *Dispatcher) { d.newID = g } }

// WithDomains routes extra domains to family. Extra routes are checked
// before the built-in table.
func WithDomains(family string, domains ...string) Option {
	return func(d *Dispatcher) {
		if len(domains) > 0 {
			d.routes = append([]route{{family: family, domains: domains}}, d.routes...)
		}
	}
}

// New creates a Dispatcher.
func New(s *store.Store, f Fetcher, reg *extract.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    s,
		fetcher:  f,
		registry: reg,
		now:      time.Now,
		newID:    idgen.Observation,
	}
	for _, r := range extract.DomainTable {
		d.routes = append(d.routes, route{family: r.Family, domains: r.Domains})
	}
	for _, o := range opts {
		o(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With("component", "dispatch")
	return d
}

// Result is the outcome of one scrape unit.
type Result struct {
	ProductID           string    `json:"product_id"`
	Success             bool      `json:"success"`
	ObservationsWritten int       `json:"data_points_saved"`
	Family              string    `json:"scraper_type,omitempty"`
	FromCache           bool      `json:"from_cache,omitempty"`
	ScrapedAt           time.Time `json:"scraped_at"`
	Error               string    `json:"error,omitempty"`
}

// ResolveFamily picks the extractor family: scraper_type override, then
// the domain table (suffix match), then ecommerce.
func (d *Dispatcher) ResolveFamily(rawURL string, cfg extract.TrackingConfig) string {
	if cfg.ScraperType != "" {
		return cfg.ScraperType
	}
	host := extract.Host(rawURL)
	for _, r := range d.routes {
		for _, dom := range r.domains {
			if extract.MatchDomain(host, dom) {
				return r.family
			}
		}
	}
	return extract.Ecommerce
}

// ScrapeProduct runs one scrape unit. It always returns a Result; when the
// unit fails, Result.Success is false and the returned error carries the
// errs sentinel (ErrNotFound, ErrMissingConfiguration, ErrUnsupportedSource,
// ErrFetchFailure, ErrNoData, ErrValidation) so the jobs layer can decide
// whether to retry.
func (d *Dispatcher) ScrapeProduct(ctx context.Context, productID string) (*Result, error) {
	res := &Result{ProductID: productID, ScrapedAt: d.now().UTC()}
	fail := func(family, outcome string, err error) (*Result, error) {
		res.Error = err.Error()
		if d.observer != nil && family != "" {
			d.observer.Scraped(family, outcome)
		}
		d.logger.WarnContext(ctx, "dispatch: scrape failed", "product_id", productID, "family", family, "error", err)
		return res, err
	}

	p, err := d.store.GetProduct(ctx, productID)
	if err != nil {
		return fail("", OutcomeError, fmt.Errorf("get product: %w", err))
	}
	if p == nil || !p.Active {
		return fail("", OutcomeRejected, fmt.Errorf("%w: product %s not found or inactive", errs.ErrNotFound, productID))
	}
	if p.URL == "" {
		return fail("", OutcomeRejected, fmt.Errorf("%w: product %s has no source URL", errs.ErrMissingConfiguration, productID))
	}
	cfg, err := extract.ParseConfig(p.ConfigJSON)
	if err != nil {
		return fail("", OutcomeRejected, err)
	}
	if !cfg.IsEnabled() {
		return fail("", OutcomeRejected, fmt.Errorf("%w: tracking disabled for product %s", errs.ErrNotFound, productID))
	}

	family := d.ResolveFamily(p.URL, cfg)
	res.Family = family
	ex, ok := d.registry.Get(family)
	if !ok {
		return fail(family, OutcomeRejected, fmt.Errorf("%w: no extractor for family %q", errs.ErrUnsupportedSource, family))
	}
	if !ex.ValidateURL(p.URL) {
		return fail(family, OutcomeRejected, fmt.Errorf("%w: %s rejects %s", errs.ErrUnsupportedSource, family, p.URL))
	}

	plan := ex.Plan(p.URL, cfg)
	page, err := d.fetcher.Fetch(ctx, fetch.Request{
		URL:      p.URL,
		Strategy: plan.Strategy,
		WaitFor:  plan.WaitFor,
		Platform: plan.Platform,
	})
	if err != nil {
		if !errors.Is(err, errs.ErrFetchFailure) {
			err = fmt.Errorf("%w: %v", errs.ErrFetchFailure, err)
		}
		return fail(family, OutcomeFetchFailed, err)
	}
	res.FromCache = page.FromCache

	frags, err := ex.Extract(ctx, extract.Input{URL: p.URL, Content: page.Content, Config: cfg, Now: d.now()})
	if err != nil {
		return fail(family, OutcomeError, fmt.Errorf("extract: %w", err))
	}

	obs, err := d.Persist(ctx, p, family, frags)
	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, errs.ErrNoData) {
			outcome = OutcomeNoData
		}
		return fail(family, outcome, err)
	}

	res.Success = true
	res.ObservationsWritten = len(obs)
	if d.observer != nil {
		d.observer.Scraped(family, OutcomeSuccess)
	}
	d.logger.InfoContext(ctx, "dispatch: scraped", "product_id", productID, "family", family,
		"observations", len(obs), "from_cache", page.FromCache)
	return res, nil
}

// Persist turns fragments into observations stamped with the current time
// and the family as source unless a fragment overrides it. Empty fragments
// are dropped; a batch with nothing left is ErrNoData.
func (d *Dispatcher) Persist(ctx context.Context, p *store.Product, family string, frags []extract.Fragment) ([]*store.Observation, error) {
	collected := d.now().UnixMilli()
	obs := make([]*store.Observation, 0, len(frags))
	for _, f := range frags {
		if f.Empty() || f.Metric == "" {
			d.logger.DebugContext(ctx, "dispatch: empty fragment dropped", "product_id", p.ID, "metric", f.Metric)
			continue
		}
		meta := "{}"
		if len(f.Metadata) > 0 {
			b, err := json.Marshal(f.Metadata)
			if err != nil {
				return nil, fmt.Errorf("%w: metadata for %s: %v", errs.ErrValidation, f.Metric, err)
			}
			meta = string(b)
		}
		source := f.Source
		if source == "" {
			source = family
		}
		obs = append(obs, &store.Observation{
			ID:           d.newID(),
			ProductID:    p.ID,
			Metric:       f.Metric,
			Value:        f.Value,
			TextValue:    f.Text,
			Source:       source,
			MetadataJSON: meta,
			CollectedAt:  collected,
			CreatedAt:    collected,
		})
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: no data scraped for product %s", errs.ErrNoData, p.ID)
	}
	if err := d.store.InsertObservations(ctx, obs); err != nil {
		return nil, fmt.Errorf("persist observations: %w", err)
	}
	if d.observer != nil {
		counts := make(map[string]int)
		for _, o := range obs {
			counts[o.Metric]++
		}
		for m, n := range counts {
			d.observer.ObservationsWritten(m, n)
		}
	}
	for _, h := range d.hooks {
		h.AfterPersist(ctx, p, obs)
	}
	return obs, nil
}

// ProductResult pairs a product with its scrape outcome.
type ProductResult struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Result      *Result `json:"result"`
}

// Summary aggregates a scrape-all run.
type Summary struct {
	TotalProducts int             `json:"total_products"`
	Successful    int             `json:"successful_scrapes"`
	Failed        int             `json:"failed_scrapes"`
	Results       []ProductResult `json:"results"`
}

// ScrapeAllActive scrapes every active product with a URL. One product's
// failure never stops the others. Only a failure to list products or a
// cancelled context is returned as an error.
func (d *Dispatcher) ScrapeAllActive(ctx context.Context) (*Summary, error) {
	products, err := d.store.ListScrapableProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	sum := &Summary{TotalProducts: len(products), Results: make([]ProductResult, 0, len(products))}
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, _ := d.ScrapeProduct(ctx, p.ID)
		if res.Success {
			sum.Successful++
		} else {
			sum.Failed++
		}
		sum.Results = append(sum.Results, ProductResult{ProductID: p.ID, ProductName: p.Name, Result: res})
	}
	d.logger.InfoContext(ctx, "dispatch: scrape-all done", "total", sum.TotalProducts,
		"successful", sum.Successful, "failed", sum.Failed)
	return sum, nil
}
