// CLAUDE:SUMMARY Price-change alerts: compares each new price with the last known one in the cache, records alerts past the threshold.
// Package alert raises price-change alerts after observations are persisted.
//
// The last known price of a product lives in the cache under
// "last_price:<product_id>". A new price moving at least the threshold
// percent away from it records an alert; the cached price is then updated.
// Delivery (email, webhook) is out of scope: alerts are stored and logged.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/hazyhaar/marketintel/idgen"
	"github.com/hazyhaar/marketintel/marketintel/internal/cache"
	"github.com/hazyhaar/marketintel/marketintel/internal/store"
)

// KindPriceChange is the alert kind for price moves.
const KindPriceChange = "price_change"

// KeyPrefix prefixes the cache key holding a product's last price.
const KeyPrefix = "last_price:"

// Observer receives raised alerts (metrics).
type Observer interface {
	AlertRaised(kind string)
}

// Checker compares new prices with the last known ones.
type Checker struct {
	store     *store.Store
	cache     cache.Cache
	threshold float64
	observer  Observer
	logger    *slog.Logger
	newID     idgen.Generator
}

// Option configures a Checker.
type Option func(*Checker)

// WithThreshold sets the minimum |change| percent that raises an alert. Default: 5.
func WithThreshold(pct float64) Option { return func(c *Checker) { c.threshold = pct } }

// WithObserver reports raised alerts.
func WithObserver(o Observer) Option { return func(c *Checker) { c.observer = o } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Checker) { c.logger = l } }

// WithIDGenerator overrides alert ID generation.
func WithIDGenerator(g idgen.Generator) Option { return func(c *Checker) { c.newID = g } }

// New creates a Checker.
func New(s *store.Store, c cache.Cache, opts ...Option) *Checker {
	ch := &Checker{store: s, cache: c, threshold: 5, newID: idgen.Alert}
	for _, o := range opts {
		o(ch)
	}
	if ch.threshold <= 0 {
		ch.threshold = 5
	}
	if ch.logger == nil {
		ch.logger = slog.Default()
	}
	ch.logger = ch.logger.With("component", "alert")
	return ch
}

// AfterPersist checks every numeric price observation of the batch.
// Errors are logged; they never fail the scrape that produced the batch.
func (c *Checker) AfterPersist(ctx context.Context, p *store.Product, obs []*store.Observation) {
	for _, o := range obs {
		if o.Metric != "price" || o.Value == nil {
			continue
		}
		if _, err := c.Check(ctx, p, *o.Value); err != nil {
			c.logger.WarnContext(ctx, "alert: check failed", "product_id", p.ID, "error", err)
		}
	}
}

// Check compares price with the last known price of p, records an alert when
// the move reaches the threshold, and stores price as the new last price.
// It returns the alert, or nil when none was raised.
func (c *Checker) Check(ctx context.Context, p *store.Product, price float64) (*store.Alert, error) {
	key := KeyPrefix + p.ID
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	var a *store.Alert
	if ok {
		prev, perr := strconv.ParseFloat(raw, 64)
		if perr == nil && prev > 0 {
			change := (price - prev) * 100 / prev
			if math.Abs(change) >= c.threshold {
				a = &store.Alert{
					ID:            c.newID(),
					ProductID:     p.ID,
					Kind:          KindPriceChange,
					PreviousValue: prev,
					CurrentValue:  price,
					ChangePercent: math.Round(change*100) / 100,
					Message:       message(p.Name, prev, price, change),
				}
				if err := c.store.InsertAlert(ctx, a); err != nil {
					return nil, fmt.Errorf("insert alert: %w", err)
				}
				if c.observer != nil {
					c.observer.AlertRaised(KindPriceChange)
				}
				c.logger.WarnContext(ctx, "alert: price change",
					"product_id", p.ID, "previous", prev, "current", price, "change_percent", a.ChangePercent)
			}
		}
	}

	if err := c.cache.Set(ctx, key, strconv.FormatFloat(price, 'f', -1, 64), 0); err != nil {
		return a, fmt.Errorf("set %s: %w", key, err)
	}
	return a, nil
}

func message(name string, prev, cur, change float64) string {
	direction := "increased"
	if change < 0 {
		direction = "decreased"
	}
	return fmt.Sprintf("Price of %s has %s by %.2f%% ($%.2f to $%.2f)", name, direction, math.Abs(change), prev, cur)
}
