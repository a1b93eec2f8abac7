// CLAUDE:SUMMARY Report builder: per-period find-or-create, pending→processing→completed|failed lifecycle, regenerate.
// Package report packages analytics output into persisted, timestamped
// reports. A report is created pending, moved to processing by exactly one
// builder, then completed with a content snapshot or failed without content.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/marketintel/idgen"
	"github.com/hazyhaar/marketintel/marketintel/internal/analytics"
	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
	"github.com/hazyhaar/marketintel/marketintel/internal/store"
)

// Report kinds.
const (
	Daily      = "daily"
	Weekly     = "weekly"
	Monthly    = "monthly"
	Competitor = "competitor"
	Custom     = "custom"
)

// Kinds lists every supported report kind.
var Kinds = []string{Daily, Weekly, Monthly, Competitor, Custom}

// DefaultCustomWindow is the custom report window when the caller gives none.
const DefaultCustomWindow = 7

// Observer receives generation outcomes (metrics).
type Observer interface {
	Generated(kind, status string)
}

// Builder generates and persists reports.
type Builder struct {
	store    *store.Store
	engine   *analytics.Engine
	renderer *Renderer
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	newID    idgen.Generator
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.logger = l } }

// WithObserver reports generation outcomes.
func WithObserver(o Observer) Option { return func(b *Builder) { b.observer = o } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(b *Builder) { b.now = now } }

// WithIDGenerator overrides report ID generation.
func WithIDGenerator(g idgen.Generator) Option { return func(b *Builder) { b.newID = g } }

// New creates a Builder reading analytics from engine.
func New(s *store.Store, engine *analytics.Engine, opts ...Option) *Builder {
	b := &Builder{
		store:    s,
		engine:   engine,
		renderer: NewRenderer(),
		now:      time.Now,
		newID:    idgen.Report,
	}
	for _, o := range opts {
		o(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With("component", "report")
	return b
}

// ValidKind reports whether kind is a supported report kind.
func ValidKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Generate produces a report of kind for a company. Daily, weekly and
// monthly reports are idempotent per calendar period: a second call returns
// the report already stored for the period. windowDays only applies to
// custom reports.
//
// A generation failure returns the failed report together with the error.
func (b *Builder) Generate(ctx context.Context, companyID, kind string, windowDays int) (*store.Report, error) {
	if !ValidKind(kind) {
		return nil, fmt.Errorf("%w: unknown report kind %q", errs.ErrValidation, kind)
	}
	company, err := b.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if company == nil {
		return nil, fmt.Errorf("%w: company %s", errs.ErrNotFound, companyID)
	}

	now := b.now().UTC()
	p := PeriodFor(kind, now, windowDays)
	r := &store.Report{
		ID:         b.newID(),
		Title:      title(kind, company.Name, p),
		Kind:       kind,
		CompanyID:  companyID,
		PeriodKey:  p.Key,
		WindowDays: p.WindowDays,
		Format:     FormatJSON,
		Status:     store.StatusPending,
	}
	stored, created, err := b.store.CreateReportIfAbsent(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	if !created && stored.Status != store.StatusPending {
		b.logger.DebugContext(ctx, "report: existing report for period",
			"report_id", stored.ID, "kind", kind, "period", p.Key, "status", stored.Status)
		return stored, nil
	}
	return b.run(ctx, stored, company)
}

// Regenerate resets a report to pending, clears its content and builds it
// again. windowDays > 0 overrides the stored window of a custom report.
func (b *Builder) Regenerate(ctx context.Context, reportID string, windowDays int) (*store.Report, error) {
	r, err := b.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if r.Kind != Custom {
		windowDays = 0
	}
	if err := b.store.ResetReport(ctx, r.ID, windowDays); err != nil {
		return nil, fmt.Errorf("reset report: %w", err)
	}
	company, err := b.store.GetCompany(ctx, r.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if company == nil {
		return nil, fmt.Errorf("%w: company %s", errs.ErrNotFound, r.CompanyID)
	}
	if r, err = b.store.GetReport(ctx, reportID); err != nil {
		return nil, err
	}
	b.logger.InfoContext(ctx, "report: regenerating", "report_id", r.ID, "kind", r.Kind)
	return b.run(ctx, r, company)
}

// GetReport returns a report by ID.
func (b *Builder) GetReport(ctx context.Context, id string) (*store.Report, error) {
	r, err := b.store.GetReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: report %s", errs.ErrNotFound, id)
	}
	return r, nil
}

// ListReports returns reports newest first. Empty filters match everything.
func (b *Builder) ListReports(ctx context.Context, companyID, kind string, limit int) ([]*store.Report, error) {
	if kind != "" && !ValidKind(kind) {
		return nil, fmt.Errorf("%w: unknown report kind %q", errs.ErrValidation, kind)
	}
	return b.store.ListReports(ctx, companyID, kind, limit)
}

// Render returns a completed report in format along with its content type.
func (b *Builder) Render(ctx context.Context, id, format string) ([]byte, string, error) {
	r, err := b.GetReport(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return b.renderer.Render(r, format)
}

func (b *Builder) run(ctx context.Context, r *store.Report, company *store.Company) (*store.Report, error) {
	ok, err := b.store.MarkReportProcessing(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	if !ok {
		// Another builder claimed it first.
		return b.GetReport(ctx, r.ID)
	}

	start := b.now()
	heading := title(r.Kind, company.Name, periodOf(r.Kind, r.PeriodKey, r.WindowDays, start))
	content, err := b.build(ctx, r, company)
	if err == nil {
		var data []byte
		if data, err = json.Marshal(content); err == nil {
			err = b.store.CompleteReport(ctx, r.ID, heading, string(data), b.now().UnixMilli())
		}
	}
	if err != nil {
		b.logger.WarnContext(ctx, "report: generation failed",
			"report_id", r.ID, "kind", r.Kind, "company_id", company.ID, "error", err)
		if ferr := b.store.FailReport(ctx, r.ID, err.Error()); ferr != nil {
			return nil, fmt.Errorf("fail report: %w", ferr)
		}
		b.observe(r.Kind, store.StatusFailed)
		failed, gerr := b.GetReport(ctx, r.ID)
		if gerr != nil {
			return nil, gerr
		}
		return failed, fmt.Errorf("generate %s report: %w", r.Kind, err)
	}

	b.observe(r.Kind, store.StatusCompleted)
	b.logger.InfoContext(ctx, "report: generated",
		"report_id", r.ID, "kind", r.Kind, "company_id", company.ID,
		"duration_ms", b.now().Sub(start).Milliseconds())
	return b.GetReport(ctx, r.ID)
}

func (b *Builder) observe(kind, status string) {
	if b.observer != nil {
		b.observer.Generated(kind, status)
	}
}

func title(kind, company string, p Period) string {
	switch kind {
	case Daily:
		return fmt.Sprintf("Daily Report - %s - %s", company, p.Key)
	case Weekly:
		return "Weekly Report - " + company
	case Monthly:
		return "Monthly Report - " + company
	case Competitor:
		return "Competitor Analysis - " + company
	default:
		return fmt.Sprintf("Custom Report - %s - %d days", company, p.WindowDays)
	}
}
