// CLAUDE:SUMMARY Store data types: Company, Product, Observation, Report, Alert, filters and aggregates.
package store

// Company is a tracked organisation.
type Company struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Domain       string `json:"domain"`
	Industry     string `json:"industry"`
	CompetitorTo string `json:"competitor_to,omitempty"`
	Active       bool   `json:"active"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// Product is a tracked item with a source URL and a tracking configuration.
type Product struct {
	ID         string `json:"id"`
	CompanyID  string `json:"company_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`
	ConfigJSON string `json:"config_json"`
	Active     bool   `json:"active"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
}

// Observation is one immutable timestamped fact about a product.
type Observation struct {
	ID           string   `json:"id"`
	ProductID    string   `json:"product_id"`
	Metric       string   `json:"metric"`
	Value        *float64 `json:"value,omitempty"`
	TextValue    *string  `json:"text_value,omitempty"`
	Source       string   `json:"source"`
	MetadataJSON string   `json:"metadata_json"`
	CollectedAt  int64    `json:"collected_at"`
	CreatedAt    int64    `json:"created_at"`
}

// ObservationFilter selects observations. Zero fields are unbounded.
type ObservationFilter struct {
	ProductID string
	Metric    string
	Since     int64 // inclusive
	Until     int64 // inclusive
	Limit     int
	Newest    bool // newest first instead of oldest first
}

// Report lifecycle states.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Report is a persisted analytics snapshot for one company.
type Report struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Kind         string  `json:"kind"`
	CompanyID    string  `json:"company_id"`
	PeriodKey    string  `json:"period_key,omitempty"`
	WindowDays   int     `json:"window_days"`
	ContentJSON  *string `json:"content_json,omitempty"`
	Format       string  `json:"format"`
	Status       string  `json:"status"`
	Error        string  `json:"error,omitempty"`
	GeneratedAt  *int64  `json:"generated_at,omitempty"`
	ScheduledFor *int64  `json:"scheduled_for,omitempty"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
}

// Alert records a significant change on a product metric.
type Alert struct {
	ID            string  `json:"id"`
	ProductID     string  `json:"product_id"`
	Kind          string  `json:"kind"`
	PreviousValue float64 `json:"previous_value"`
	CurrentValue  float64 `json:"current_value"`
	ChangePercent float64 `json:"change_percent"`
	Message       string  `json:"message"`
	CreatedAt     int64   `json:"created_at"`
}

// SourceCount is an observation volume per source label.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"data_points"`
}
