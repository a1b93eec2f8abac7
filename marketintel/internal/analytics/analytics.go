// CLAUDE:SUMMARY Read-only analytics over the observation store: price trend, sentiment, competitors, market overview, product summary.
// Package analytics computes windowed statistics over observations.
//
// Every query returns a result or an error wrapping errs.ErrNoData /
// errs.ErrNotFound. Rounding (2 places for currency, 3 for sentiment) is
// applied to returned aggregates only; stored observations keep full precision.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
	"github.com/hazyhaar/marketintel/marketintel/internal/store"
)

// Config holds the classification thresholds.
type Config struct {
	PriceChangePercent float64 // trend is increasing/decreasing beyond ±this. Default: 5.
	SentimentPositive  float64 // average above this is positive. Default: 0.6.
	SentimentNegative  float64 // average below this is negative. Default: 0.4.
	AnomalyZScore      float64 // |z| above this is an anomaly. Default: 2.0.
}

func (c *Config) defaults() {
	if c.PriceChangePercent <= 0 {
		c.PriceChangePercent = 5
	}
	if c.SentimentPositive == 0 {
		c.SentimentPositive = 0.6
	}
	if c.SentimentNegative == 0 {
		c.SentimentNegative = 0.4
	}
	if c.AnomalyZScore <= 0 {
		c.AnomalyZScore = 2.0
	}
}

// Engine runs analytics queries.
type Engine struct {
	store  *store.Store
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// New creates an Engine.
func New(s *store.Store, cfg Config, opts ...Option) *Engine {
	cfg.defaults()
	e := &Engine{store: s, cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "analytics")
	return e
}

// At returns a copy of the engine whose windows end at t.
func (e *Engine) At(t time.Time) *Engine {
	c := *e
	c.now = func() time.Time { return t }
	return &c
}

// Config returns the effective thresholds.
func (e *Engine) Config() Config { return e.cfg }

// PricePoint is one entry of a price history.
type PricePoint struct {
	Date   string   `json:"date"`
	Price  *float64 `json:"price"`
	Source string   `json:"source"`
}

// PriceTrend summarises a product's price over a window.
type PriceTrend struct {
	ProductID          string       `json:"product_id"`
	PeriodDays         int          `json:"period_days"`
	CurrentPrice       float64      `json:"current_price"`
	AveragePrice       float64      `json:"average_price"`
	MinPrice           float64      `json:"min_price"`
	MaxPrice           float64      `json:"max_price"`
	PriceChangePercent float64      `json:"price_change_percent"`
	Trend              string       `json:"trend"`
	DataPoints         int          `json:"data_points"`
	PriceHistory       []PricePoint `json:"price_history"`
}

// Trend labels.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// PriceTrend analyses price observations collected in the last days days.
func (e *Engine) PriceTrend(ctx context.Context, productID string, days int) (*PriceTrend, error) {
	if days <= 0 {
		days = 30
	}
	now := e.now()
	rows, err := e.store.ListObservations(ctx, store.ObservationFilter{
		ProductID: productID,
		Metric:    "price",
		Since:     now.AddDate(0, 0, -days).UnixMilli(),
		Until:     now.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no price data for product %s", errs.ErrNoData, productID)
	}

	var prices []float64
	for _, o := range rows {
		if o.Value != nil {
			prices = append(prices, *o.Value)
		}
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("%w: no numeric price for product %s", errs.ErrNoData, productID)
	}

	current := prices[len(prices)-1]
	t := &PriceTrend{
		ProductID:    productID,
		PeriodDays:   days,
		CurrentPrice: Round(current, 2),
		AveragePrice: Round(mean(prices), 2),
		MinPrice:     Round(minOf(prices), 2),
		MaxPrice:     Round(maxOf(prices), 2),
		Trend:        TrendStable,
		DataPoints:   len(rows),
	}
	if len(prices) >= 2 && prices[0] != 0 {
		change := (current - prices[0]) * 100 / prices[0]
		t.PriceChangePercent = Round(change, 2)
		t.Trend = e.classifyChange(change)
	}

	start := max(0, len(rows)-10)
	for _, o := range rows[start:] {
		t.PriceHistory = append(t.PriceHistory, PricePoint{Date: isoMs(o.CollectedAt), Price: o.Value, Source: o.Source})
	}
	return t, nil
}

func (e *Engine) classifyChange(change float64) string {
	switch {
	case change > e.cfg.PriceChangePercent:
		return TrendIncreasing
	case change < -e.cfg.PriceChangePercent:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// SourceSentiment is the per-source breakdown of a sentiment analysis.
type SourceSentiment struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Mention is one recent sentiment observation.
type Mention struct {
	Date      string   `json:"date"`
	Sentiment *float64 `json:"sentiment"`
	Source    string   `json:"source"`
	Text      *string  `json:"text"`
}

// Sentiment summarises sentiment observations over a window.
type Sentiment struct {
	ProductID        string                     `json:"product_id"`
	PeriodDays       int                        `json:"period_days"`
	AverageSentiment float64                    `json:"average_sentiment"`
	SentimentTrend   string                     `json:"sentiment_trend"`
	TotalMentions    int                        `json:"total_mentions"`
	SourceBreakdown  map[string]SourceSentiment `json:"source_breakdown"`
	RecentMentions   []Mention                  `json:"recent_mentions"`
}

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Sentiment analyses sentiment observations collected in the last days days.
func (e *Engine) Sentiment(ctx context.Context, productID string, days int) (*Sentiment, error) {
	if days <= 0 {
		days = 7
	}
	now := e.now()
	rows, err := e.store.ListObservations(ctx, store.ObservationFilter{
		ProductID: productID,
		Metric:    "sentiment",
		Since:     now.AddDate(0, 0, -days).UnixMilli(),
		Until:     now.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("list sentiment: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no sentiment data for product %s", errs.ErrNoData, productID)
	}

	var all []float64
	bySource := make(map[string][]float64)
	for _, o := range rows {
		if o.Value == nil {
			continue
		}
		all = append(all, *o.Value)
		bySource[o.Source] = append(bySource[o.Source], *o.Value)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: no valid sentiment scores for product %s", errs.ErrNoData, productID)
	}

	avg := mean(all)
	s := &Sentiment{
		ProductID:        productID,
		PeriodDays:       days,
		AverageSentiment: Round(avg, 3),
		SentimentTrend:   e.classifySentiment(avg),
		TotalMentions:    len(rows),
		SourceBreakdown:  make(map[string]SourceSentiment, len(bySource)),
	}
	for src, scores := range bySource {
		s.SourceBreakdown[src] = SourceSentiment{Average: Round(mean(scores), 3), Count: len(scores)}
	}
	start := max(0, len(rows)-5)
	for _, o := range rows[start:] {
		s.RecentMentions = append(s.RecentMentions, Mention{
			Date:      isoMs(o.CollectedAt),
			Sentiment: o.Value,
			Source:    o.Source,
			Text:      truncateMention(o.TextValue),
		})
	}
	return s, nil
}

func (e *Engine) classifySentiment(avg float64) string {
	switch {
	case avg > e.cfg.SentimentPositive:
		return SentimentPositive
	case avg < e.cfg.SentimentNegative:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func truncateMention(t *string) *string {
	if t == nil {
		return nil
	}
	r := []rune(*t)
	if len(r) <= 100 {
		return t
	}
	s := string(r[:100]) + "..."
	return &s
}

// Round rounds v to places decimals, half away from zero.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		m = math.Min(m, v)
	}
	return m
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		m = math.Max(m, v)
	}
	return m
}

func isoMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
