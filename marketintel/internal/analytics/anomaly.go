package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/hazyhaar/marketintel/marketintel/internal/store"
)

// Anomaly is one observation far from its window mean.
type Anomaly struct {
	ObservationID string  `json:"observation_id"`
	Date          string  `json:"date"`
	Value         float64 `json:"value"`
	Source        string  `json:"source"`
	Deviation     float64 `json:"deviation"` // z-score
}

// AnomalyReport lists the outliers of one metric series.
type AnomalyReport struct {
	ProductID  string    `json:"product_id"`
	Metric     string    `json:"metric"`
	PeriodDays int       `json:"period_days"`
	Mean       float64   `json:"mean"`
	StdDev     float64   `json:"std_dev"`
	Threshold  float64   `json:"threshold"`
	Anomalies  []Anomaly `json:"anomalies"`
}

// Anomalies flags observations whose |value − mean| / stddev exceeds the
// configured z-score threshold. The standard deviation is the population
// one. Fewer than 3 numeric points or a flat series yields no anomalies.
func (e *Engine) Anomalies(ctx context.Context, productID, metric string, days int) (*AnomalyReport, error) {
	if days <= 0 {
		days = 30
	}
	if metric == "" {
		metric = "price"
	}
	now := e.now()
	rows, err := e.store.ListObservations(ctx, store.ObservationFilter{
		ProductID: productID,
		Metric:    metric,
		Since:     now.AddDate(0, 0, -days).UnixMilli(),
		Until:     now.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", metric, err)
	}
	r := &AnomalyReport{ProductID: productID, Metric: metric, PeriodDays: days,
		Threshold: e.cfg.AnomalyZScore, Anomalies: []Anomaly{}}

	var points []*store.Observation
	var values []float64
	for _, o := range rows {
		if o.Value != nil {
			points = append(points, o)
			values = append(values, *o.Value)
		}
	}
	if len(values) < 3 {
		return r, nil
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	sd := math.Sqrt(ss / float64(len(values)))
	r.Mean = Round(m, 3)
	r.StdDev = Round(sd, 3)
	if sd == 0 {
		return r, nil
	}
	for _, o := range points {
		z := (*o.Value - m) / sd
		if math.Abs(z) > e.cfg.AnomalyZScore {
			r.Anomalies = append(r.Anomalies, Anomaly{
				ObservationID: o.ID,
				Date:          isoMs(o.CollectedAt),
				Value:         *o.Value,
				Source:        o.Source,
				Deviation:     Round(z, 3),
			})
		}
	}
	if len(r.Anomalies) > 0 {
		e.logger.InfoContext(ctx, "analytics: anomalies detected", "product_id", productID,
			"metric", metric, "count", len(r.Anomalies))
	}
	return r, nil
}
