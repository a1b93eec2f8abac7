// CLAUDE:SUMMARY Scraping entry points, observation listing, scraping stats and the analytics passthroughs.
package marketintel

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/marketintel/marketintel/internal/store"
)

const maxObservationLimit = 1000

// ScrapeProduct runs one scrape unit synchronously. On failure the result
// describes the failure and the error carries the sentinel.
func (svc *Service) ScrapeProduct(ctx context.Context, productID string) (*ScrapeResult, error) {
	return svc.dispatcher.ScrapeProduct(ctx, productID)
}

// ScrapeAllActive scrapes every active product with a URL, one after the
// other. Per-product failures are counted, not returned.
func (svc *Service) ScrapeAllActive(ctx context.Context) (*ScrapeSummary, error) {
	return svc.dispatcher.ScrapeAllActive(ctx)
}

// ScrapeStats reports scraping volume and the available extractor families.
func (svc *Service) ScrapeStats(ctx context.Context) (*ScrapeStats, error) {
	return svc.dispatcher.Stats(ctx)
}

// ListObservations returns a product's observations of metric (all metrics
// when empty) collected in the last days days, newest first.
func (svc *Service) ListObservations(ctx context.Context, productID, metric string, days, limit int) ([]*Observation, error) {
	if _, err := svc.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 30
	}
	if limit <= 0 || limit > maxObservationLimit {
		limit = maxObservationLimit
	}
	now := svc.now()
	obs, err := svc.store.ListObservations(ctx, store.ObservationFilter{
		ProductID: productID,
		Metric:    metric,
		Since:     now.AddDate(0, 0, -days).UnixMilli(),
		Until:     now.UnixMilli(),
		Limit:     limit,
		Newest:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	if obs == nil {
		obs = []*Observation{}
	}
	return obs, nil
}

// ListAlerts returns the alerts raised for a product, newest first.
func (svc *Service) ListAlerts(ctx context.Context, productID string, limit int) ([]*Alert, error) {
	if _, err := svc.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	list, err := svc.store.ListAlerts(ctx, productID, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Alert{}
	}
	return list, nil
}

// --- Analytics ---

// PriceTrend analyses a product's price over the last days days (default 30).
func (svc *Service) PriceTrend(ctx context.Context, productID string, days int) (*PriceTrend, error) {
	if _, err := svc.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return svc.engine.PriceTrend(ctx, productID, days)
}

// Sentiment analyses a product's sentiment over the last days days (default 7).
func (svc *Service) Sentiment(ctx context.Context, productID string, days int) (*Sentiment, error) {
	if _, err := svc.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return svc.engine.Sentiment(ctx, productID, days)
}

// Competitors compares the companies registered as competitors of companyID.
func (svc *Service) Competitors(ctx context.Context, companyID string) (*CompetitorAnalysis, error) {
	return svc.engine.Competitors(ctx, companyID)
}

// MarketOverview summarises the whole tracked market.
func (svc *Service) MarketOverview(ctx context.Context) (*MarketOverview, error) {
	return svc.engine.MarketOverview(ctx)
}

// PerformanceSummary composes trend, sentiment and recent activity of a product.
func (svc *Service) PerformanceSummary(ctx context.Context, productID string) (*PerformanceSummary, error) {
	return svc.engine.PerformanceSummary(ctx, productID)
}

// Anomalies flags outliers of a product metric (default price) over the
// last days days (default 30).
func (svc *Service) Anomalies(ctx context.Context, productID, metric string, days int) (*AnomalyReport, error) {
	if _, err := svc.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return svc.engine.Anomalies(ctx, productID, metric, days)
}

// Cleanup deletes observations collected before the retention window.
// Reports keep their snapshots.
func (svc *Service) Cleanup(ctx context.Context) (int64, error) {
	cutoff := svc.now().Add(-time.Duration(svc.config.RetentionDays) * 24 * time.Hour)
	n, err := svc.store.DeleteObservationsBefore(ctx, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	svc.logger.InfoContext(ctx, "marketintel: cleanup done", "deleted", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	return n, nil
}
