// CLAUDE:SUMMARY Extractor contract, family registry, fragments and tracking configuration.
// Package extract turns fetched page content into normalized observation fragments.
//
// Each family (ecommerce, news, social) implements Extractor and is looked up
// by name in a Registry. Extractors never fetch and never retry: the
// dispatcher fetches according to the extractor's Plan and hands the content
// back to Extract.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
	"github.com/hazyhaar/marketintel/marketintel/internal/fetch"
)

// Family names.
const (
	Ecommerce = "ecommerce"
	News      = "news"
	Social    = "social"
)

// Fragment is one normalized value ready to become an observation.
type Fragment struct {
	Metric   string
	Value    *float64
	Text     *string
	Source   string // overrides the family label when set
	Metadata map[string]any
}

// Empty reports whether the fragment carries neither a value nor text.
func (f Fragment) Empty() bool {
	return f.Value == nil && (f.Text == nil || *f.Text == "")
}

// Input is what an extractor receives for one product.
type Input struct {
	URL     string
	Content string
	Config  TrackingConfig
	Now     time.Time
}

// Plan tells the dispatcher how to fetch a URL for a family.
type Plan struct {
	Strategy fetch.Strategy
	WaitFor  string
	Platform string
}

// Extractor is implemented by every family.
type Extractor interface {
	Family() string
	ValidateURL(rawURL string) bool
	Plan(rawURL string, cfg TrackingConfig) Plan
	Extract(ctx context.Context, in Input) ([]Fragment, error)
}

// Registry maps family names to extractors. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
}

// NewRegistry returns a registry holding the given extractors.
func NewRegistry(ex ...Extractor) *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	for _, e := range ex {
		r.Register(e)
	}
	return r
}

// Register adds or replaces the extractor for e.Family().
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[e.Family()] = e
}

// Get returns the extractor for family.
func (r *Registry) Get(family string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[family]
	return e, ok
}

// Families returns the registered family names, sorted.
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.extractors))
	for k := range r.extractors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TrackingConfig is the per-product tracking configuration stored as JSON.
type TrackingConfig struct {
	ScraperType string                  `json:"scraper_type,omitempty"`
	Enabled     *bool                   `json:"enabled,omitempty"`
	Selectors   map[string]SelectorList `json:"selectors,omitempty"`
	SearchTerms []string                `json:"search_terms,omitempty"`
	Platform    string                  `json:"platform,omitempty"`
	DaysBack    int                     `json:"days_back,omitempty"`
	Currency    string                  `json:"currency,omitempty"`
}

// IsEnabled reports whether tracking is on. Absent means on.
func (c TrackingConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// SelectorList is an ordered list of CSS selector candidates.
// JSON accepts either a single string or an array of strings.
type SelectorList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *SelectorList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = SelectorList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("selectors: want string or array of strings")
	}
	*l = many
	return nil
}

// ParseConfig decodes a product's tracking configuration. Empty input is the zero config.
func ParseConfig(raw string) (TrackingConfig, error) {
	var c TrackingConfig
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return c, fmt.Errorf("%w: tracking config: %v", errs.ErrValidation, err)
	}
	c.ScraperType = strings.ToLower(strings.TrimSpace(c.ScraperType))
	return c, nil
}

// selectorsFor returns the configured candidates for field, or fallback.
func (c TrackingConfig) selectorsFor(field string, fallback []string) []string {
	if l, ok := c.Selectors[field]; ok && len(l) > 0 {
		return l
	}
	return fallback
}

// Option configures an extractor.
type Option func(*settings)

type settings struct {
	extraDomains []string
	availability Availability
	lexicon      *Lexicon
	logger       *slog.Logger
}

func newSettings(opts []Option) settings {
	s := settings{availability: DefaultAvailability(), lexicon: DefaultLexicon()}
	for _, o := range opts {
		o(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// WithExtraDomains adds domains the family accepts on top of its built-in list.
func WithExtraDomains(domains ...string) Option {
	return func(s *settings) { s.extraDomains = append(s.extraDomains, domains...) }
}

// WithAvailability replaces the stock phrase tables.
func WithAvailability(a Availability) Option {
	return func(s *settings) { s.availability = a }
}

// WithLexicon replaces the sentiment lexicon.
func WithLexicon(l *Lexicon) Option {
	return func(s *settings) { s.lexicon = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
