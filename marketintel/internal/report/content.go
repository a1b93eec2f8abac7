package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/marketintel/marketintel/internal/analytics"
	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
	"github.com/hazyhaar/marketintel/marketintel/internal/store"
)

// ProductAnalytics is the per-product section of a periodic report.
// Sections without data are null.
type ProductAnalytics struct {
	ProductID         string                `json:"product_id"`
	ProductName       string                `json:"product_name"`
	PriceAnalysis     *analytics.PriceTrend `json:"price_analysis"`
	SentimentAnalysis *analytics.Sentiment  `json:"sentiment_analysis"`
}

// DailySummary aggregates a daily report.
type DailySummary struct {
	TotalDataPoints          int      `json:"total_data_points"`
	ProductsWithPriceChanges int      `json:"products_with_price_changes"`
	AverageSentiment         *float64 `json:"average_sentiment"`
}

// DailyContent is the snapshot stored by a daily report.
type DailyContent struct {
	Company          analytics.CompanyRef `json:"company"`
	ReportDate       string               `json:"report_date"`
	ProductsAnalyzed int                  `json:"products_analyzed"`
	ProductAnalytics []ProductAnalytics   `json:"product_analytics"`
	Summary          DailySummary         `json:"summary"`
	GeneratedAt      string               `json:"generated_at"`
}

// KeyMetrics measures price data coverage over a period.
type KeyMetrics struct {
	TotalProductsTracked  int     `json:"total_products_tracked"`
	ProductsWithPriceData int     `json:"products_with_price_data"`
	DataCoveragePercent   float64 `json:"data_coverage_percent"`
}

// PeriodContent is the snapshot stored by weekly, monthly and custom reports.
type PeriodContent struct {
	Company          analytics.CompanyRef `json:"company"`
	PeriodEnding     string               `json:"period_ending"`
	WindowDays       int                  `json:"window_days"`
	ProductsAnalyzed int                  `json:"products_analyzed"`
	ProductAnalytics []ProductAnalytics   `json:"product_analytics"`
	Insights         []string             `json:"insights"`
	KeyMetrics       KeyMetrics           `json:"key_metrics"`
	GeneratedAt      string               `json:"generated_at"`
}

// CompetitorContent is the snapshot stored by a competitor report.
type CompetitorContent struct {
	*analytics.CompetitorAnalysis
	EnhancedInsights []string `json:"enhanced_insights"`
	Recommendations  []string `json:"recommendations"`
	GeneratedAt      string   `json:"generated_at"`
}

func (b *Builder) build(ctx context.Context, r *store.Report, company *store.Company) (any, error) {
	p := periodOf(r.Kind, r.PeriodKey, r.WindowDays, b.now())
	switch r.Kind {
	case Daily:
		return b.daily(ctx, company, p)
	case Competitor:
		return b.competitor(ctx, company)
	case Weekly, Monthly, Custom:
		return b.periodic(ctx, company, r.Kind, p)
	default:
		return nil, fmt.Errorf("%w: unknown report kind %q", errs.ErrValidation, r.Kind)
	}
}

func (b *Builder) productAnalytics(ctx context.Context, companyID string, p Period) ([]ProductAnalytics, error) {
	products, err := b.store.ListProducts(ctx, companyID, true)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	engine := b.engine.At(p.End)
	out := make([]ProductAnalytics, 0, len(products))
	for _, prod := range products {
		pa := ProductAnalytics{ProductID: prod.ID, ProductName: prod.Name}
		if pa.PriceAnalysis, err = engine.PriceTrend(ctx, prod.ID, p.WindowDays); err != nil && !errors.Is(err, errs.ErrNoData) {
			return nil, err
		}
		if pa.SentimentAnalysis, err = engine.Sentiment(ctx, prod.ID, p.WindowDays); err != nil && !errors.Is(err, errs.ErrNoData) {
			return nil, err
		}
		out = append(out, pa)
	}
	return out, nil
}

func (b *Builder) daily(ctx context.Context, company *store.Company, p Period) (*DailyContent, error) {
	pas, err := b.productAnalytics(ctx, company.ID, p)
	if err != nil {
		return nil, err
	}
	c := &DailyContent{
		Company:          companyRef(company),
		ReportDate:       p.Key,
		ProductsAnalyzed: len(pas),
		ProductAnalytics: pas,
		GeneratedAt:      b.now().UTC().Format(time.RFC3339),
	}
	var sentiments []float64
	for _, pa := range pas {
		if pa.PriceAnalysis != nil && pa.PriceAnalysis.DataPoints > 0 {
			c.Summary.TotalDataPoints++
		}
		if pa.PriceAnalysis != nil && abs(pa.PriceAnalysis.PriceChangePercent) > 1 {
			c.Summary.ProductsWithPriceChanges++
		}
		if pa.SentimentAnalysis != nil {
			sentiments = append(sentiments, pa.SentimentAnalysis.AverageSentiment)
		}
	}
	if len(sentiments) > 0 {
		var sum float64
		for _, s := range sentiments {
			sum += s
		}
		avg := analytics.Round(sum/float64(len(sentiments)), 3)
		c.Summary.AverageSentiment = &avg
	}
	return c, nil
}

func (b *Builder) periodic(ctx context.Context, company *store.Company, kind string, p Period) (*PeriodContent, error) {
	pas, err := b.productAnalytics(ctx, company.ID, p)
	if err != nil {
		return nil, err
	}
	return &PeriodContent{
		Company:          companyRef(company),
		PeriodEnding:     p.End.Format(time.DateOnly),
		WindowDays:       p.WindowDays,
		ProductsAnalyzed: len(pas),
		ProductAnalytics: pas,
		Insights:         b.periodInsights(pas, periodPhrase(kind, p.WindowDays)),
		KeyMetrics:       keyMetrics(pas),
		GeneratedAt:      b.now().UTC().Format(time.RFC3339),
	}, nil
}

func (b *Builder) periodInsights(pas []ProductAnalytics, phrase string) []string {
	cfg := b.engine.Config()
	var up, down, positive int
	for _, pa := range pas {
		if pa.PriceAnalysis != nil {
			switch change := pa.PriceAnalysis.PriceChangePercent; {
			case change > cfg.PriceChangePercent:
				up++
			case change < -cfg.PriceChangePercent:
				down++
			}
		}
		if pa.SentimentAnalysis != nil && pa.SentimentAnalysis.AverageSentiment > cfg.SentimentPositive {
			positive++
		}
	}
	insights := []string{}
	if up > 0 {
		insights = append(insights, fmt.Sprintf("%d products showed significant price increases %s", up, phrase))
	}
	if down > 0 {
		insights = append(insights, fmt.Sprintf("%d products showed significant price decreases %s", down, phrase))
	}
	if positive > 0 {
		insights = append(insights, fmt.Sprintf("%d products have positive sentiment trends", positive))
	}
	return insights
}

func periodPhrase(kind string, days int) string {
	switch kind {
	case Weekly:
		return "this week"
	case Monthly:
		return "this month"
	default:
		return fmt.Sprintf("over the last %d days", days)
	}
}

func keyMetrics(pas []ProductAnalytics) KeyMetrics {
	m := KeyMetrics{TotalProductsTracked: len(pas)}
	for _, pa := range pas {
		if pa.PriceAnalysis != nil {
			m.ProductsWithPriceData++
		}
	}
	if m.TotalProductsTracked > 0 {
		m.DataCoveragePercent = analytics.Round(float64(m.ProductsWithPriceData)*100/float64(m.TotalProductsTracked), 1)
	}
	return m
}

func (b *Builder) competitor(ctx context.Context, company *store.Company) (*CompetitorContent, error) {
	a, err := b.engine.Competitors(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	c := &CompetitorContent{
		CompetitorAnalysis: a,
		EnhancedInsights:   []string{fmt.Sprintf("Monitoring %d direct competitors", len(a.Competitors))},
		Recommendations:    []string{},
		GeneratedAt:        b.now().UTC().Format(time.RFC3339),
	}

	var prices []float64
	for _, comp := range a.Competitors {
		if comp.AveragePrice != nil && *comp.AveragePrice != 0 {
			prices = append(prices, *comp.AveragePrice)
		}
	}
	if len(prices) > 0 {
		lo, hi, sum := prices[0], prices[0], 0.0
		for _, v := range prices {
			lo, hi, sum = min(lo, v), max(hi, v), sum+v
		}
		c.EnhancedInsights = append(c.EnhancedInsights,
			fmt.Sprintf("Competitor price range: $%.2f - $%.2f", lo, hi),
			fmt.Sprintf("Market average price: $%.2f", sum/float64(len(prices))))
	}

	if avg := a.MarketPosition.AvgCompetitorPrice; avg != nil {
		c.Recommendations = append(c.Recommendations,
			fmt.Sprintf("Consider pricing strategy relative to market average of $%.2f", *avg))
	}
	if len(a.Competitors) < 3 {
		c.Recommendations = append(c.Recommendations,
			"Consider expanding competitor monitoring for better market coverage")
	}
	return c, nil
}

func companyRef(c *store.Company) analytics.CompanyRef {
	return analytics.CompanyRef{ID: c.ID, Name: c.Name, Domain: c.Domain}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
