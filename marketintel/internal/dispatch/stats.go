package dispatch

import (
	"context"
	"time"
)

// Stats summarises scraping activity.
type Stats struct {
	ActiveProducts     int            `json:"active_products"`
	DataPointsLast24h  int            `json:"data_points_last_24h"`
	DataPointsBySource map[string]int `json:"data_points_by_source"`
	AvailableScrapers  []string       `json:"available_scrapers"`
}

// Stats reports active products, recent volume, volume per source and the
// registered extractor families.
func (d *Dispatcher) Stats(ctx context.Context) (*Stats, error) {
	active, err := d.store.CountActiveProducts(ctx)
	if err != nil {
		return nil, err
	}
	since := d.now().Add(-24 * time.Hour).UnixMilli()
	recent, err := d.store.CountObservationsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	bySource, err := d.store.CountBySource(ctx, 0)
	if err != nil {
		return nil, err
	}
	st := &Stats{
		ActiveProducts:     active,
		DataPointsLast24h:  recent,
		DataPointsBySource: make(map[string]int, len(bySource)),
		AvailableScrapers:  d.registry.Families(),
	}
	for _, sc := range bySource {
		st.DataPointsBySource[sc.Source] = sc.Count
	}
	return st, nil
}
