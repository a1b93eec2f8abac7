package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
	"github.com/hazyhaar/marketintel/marketintel/internal/store"
)

// CompanyRef identifies a company inside analytics output.
type CompanyRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// Competitor is one competitor's pricing footprint.
type Competitor struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Domain         string   `json:"domain"`
	ProductCount   int      `json:"product_count"`
	AveragePrice   *float64 `json:"average_price"`
	RecentActivity int      `json:"recent_activity"`
}

// MarketPosition aggregates competitors.
type MarketPosition struct {
	TotalCompetitors   int      `json:"total_competitors"`
	AvgCompetitorPrice *float64 `json:"avg_competitor_price"`
	AnalysisDate       string   `json:"analysis_date"`
}

// CompetitorAnalysis compares a company's registered competitors.
type CompetitorAnalysis struct {
	Company        CompanyRef     `json:"company"`
	Competitors    []Competitor   `json:"competitors"`
	MarketPosition MarketPosition `json:"market_position"`
	Insights       []string       `json:"insights"`
}

// Competitors analyses the companies whose competitor_to is companyID.
// A company without competitors is ErrNoData.
func (e *Engine) Competitors(ctx context.Context, companyID string) (*CompetitorAnalysis, error) {
	c, err := e.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: company %s", errs.ErrNotFound, companyID)
	}
	comps, err := e.store.ListCompetitors(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list competitors: %w", err)
	}
	if len(comps) == 0 {
		return nil, fmt.Errorf("%w: no competitors for company %s", errs.ErrNoData, companyID)
	}

	a := &CompetitorAnalysis{
		Company:     CompanyRef{ID: c.ID, Name: c.Name, Domain: c.Domain},
		Competitors: make([]Competitor, 0, len(comps)),
		Insights:    []string{},
	}
	var marketPrices []float64
	for _, comp := range comps {
		products, err := e.store.ListProducts(ctx, comp.ID, false)
		if err != nil {
			return nil, fmt.Errorf("list products of %s: %w", comp.ID, err)
		}
		var latest []float64
		for _, p := range products {
			o, err := e.store.LatestObservation(ctx, p.ID, "price")
			if err != nil {
				return nil, fmt.Errorf("latest price of %s: %w", p.ID, err)
			}
			if o != nil && o.Value != nil && *o.Value != 0 {
				latest = append(latest, *o.Value)
			}
		}
		entry := Competitor{
			ID:             comp.ID,
			Name:           comp.Name,
			Domain:         comp.Domain,
			ProductCount:   len(products),
			RecentActivity: len(latest),
		}
		if len(latest) > 0 {
			avg := Round(mean(latest), 2)
			entry.AveragePrice = &avg
			if avg > 0 {
				marketPrices = append(marketPrices, avg)
			}
		}
		a.Competitors = append(a.Competitors, entry)
	}

	a.MarketPosition = MarketPosition{
		TotalCompetitors: len(comps),
		AnalysisDate:     e.now().UTC().Format(time.RFC3339),
	}
	if len(marketPrices) > 0 {
		avg := Round(mean(marketPrices), 2)
		a.MarketPosition.AvgCompetitorPrice = &avg
		a.Insights = append(a.Insights, fmt.Sprintf("Market average price is $%.2f", avg))
	}
	return a, nil
}

// MarketOverview is a global snapshot.
type MarketOverview struct {
	TotalCompanies      int                 `json:"total_companies"`
	TotalProducts       int                 `json:"total_products"`
	RecentDataPoints24h int                 `json:"recent_data_points_24h"`
	TopSources          []store.SourceCount `json:"top_sources"`
	LastUpdated         string              `json:"last_updated"`
}

// MarketOverview counts active companies and products, the last 24h of
// observations and the top 5 sources by volume.
func (e *Engine) MarketOverview(ctx context.Context) (*MarketOverview, error) {
	companies, err := e.store.CountActiveCompanies(ctx)
	if err != nil {
		return nil, err
	}
	products, err := e.store.CountActiveProducts(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()
	recent, err := e.store.CountObservationsSince(ctx, now.Add(-24*time.Hour).UnixMilli())
	if err != nil {
		return nil, err
	}
	top, err := e.store.CountBySource(ctx, 5)
	if err != nil {
		return nil, err
	}
	if top == nil {
		top = []store.SourceCount{}
	}
	return &MarketOverview{
		TotalCompanies:      companies,
		TotalProducts:       products,
		RecentDataPoints24h: recent,
		TopSources:          top,
		LastUpdated:         now.UTC().Format(time.RFC3339),
	}, nil
}

// ProductRef identifies a product inside a performance summary.
type ProductRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Company  string `json:"company,omitempty"`
}

// Activity is one recent observation of any metric.
type Activity struct {
	Date       string   `json:"date"`
	MetricType string   `json:"metric_type"`
	Value      *float64 `json:"value"`
	Source     string   `json:"source"`
}

// PerformanceSummary composes the analyses of one product. Sections with
// no data are null.
type PerformanceSummary struct {
	Product           ProductRef  `json:"product"`
	PriceAnalysis     *PriceTrend `json:"price_analysis"`
	SentimentAnalysis *Sentiment  `json:"sentiment_analysis"`
	RecentActivity    []Activity  `json:"recent_activity"`
	SummaryGenerated  string      `json:"summary_generated"`
}

// PerformanceSummary returns the 30-day price trend, the 7-day sentiment
// and the 10 most recent observations of a product.
func (e *Engine) PerformanceSummary(ctx context.Context, productID string) (*PerformanceSummary, error) {
	p, err := e.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: product %s", errs.ErrNotFound, productID)
	}
	sum := &PerformanceSummary{
		Product:          ProductRef{ID: p.ID, Name: p.Name, Category: p.Category},
		RecentActivity:   []Activity{},
		SummaryGenerated: e.now().UTC().Format(time.RFC3339),
	}
	if c, err := e.store.GetCompany(ctx, p.CompanyID); err == nil && c != nil {
		sum.Product.Company = c.Name
	}

	if sum.PriceAnalysis, err = e.PriceTrend(ctx, productID, 30); err != nil && !errors.Is(err, errs.ErrNoData) {
		return nil, err
	}
	if sum.SentimentAnalysis, err = e.Sentiment(ctx, productID, 7); err != nil && !errors.Is(err, errs.ErrNoData) {
		return nil, err
	}

	recent, err := e.store.ListObservations(ctx, store.ObservationFilter{ProductID: productID, Limit: 10, Newest: true})
	if err != nil {
		return nil, fmt.Errorf("recent observations: %w", err)
	}
	for _, o := range recent {
		sum.RecentActivity = append(sum.RecentActivity, Activity{
			Date: isoMs(o.CollectedAt), MetricType: o.Metric, Value: o.Value, Source: o.Source,
		})
	}
	return sum, nil
}
