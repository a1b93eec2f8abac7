package marketintel

import (
	"context"
	"fmt"

	"github.com/hazyhaar/marketintel/marketintel/internal/report"
)

// GenerateReport builds (or returns the existing) report of kind for a
// company. windowDays only applies to custom reports. A failed generation
// returns the failed report together with the error.
func (svc *Service) GenerateReport(ctx context.Context, companyID, kind string, windowDays int) (*Report, error) {
	if windowDays < 0 || windowDays > 365 {
		return nil, fmt.Errorf("%w: window_days must be between 1 and 365", ErrValidation)
	}
	return svc.reports.Generate(ctx, companyID, kind, windowDays)
}

// RegenerateReport resets a report to pending and builds it again.
func (svc *Service) RegenerateReport(ctx context.Context, reportID string, windowDays int) (*Report, error) {
	if windowDays < 0 || windowDays > 365 {
		return nil, fmt.Errorf("%w: window_days must be between 1 and 365", ErrValidation)
	}
	return svc.reports.Regenerate(ctx, reportID, windowDays)
}

// GetReport returns a report by ID.
func (svc *Service) GetReport(ctx context.Context, id string) (*Report, error) {
	return svc.reports.GetReport(ctx, id)
}

// ListReports returns reports newest first, filtered by company and kind
// when set.
func (svc *Service) ListReports(ctx context.Context, companyID, kind string, limit int) ([]*Report, error) {
	if companyID != "" {
		if _, err := svc.GetCompany(ctx, companyID); err != nil {
			return nil, err
		}
	}
	list, err := svc.reports.ListReports(ctx, companyID, kind, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Report{}
	}
	return list, nil
}

// RenderReport renders a completed report as json, html or markdown and
// returns the bytes with their content type.
func (svc *Service) RenderReport(ctx context.Context, id, format string) ([]byte, string, error) {
	if format == "" {
		format = report.FormatJSON
	}
	return svc.reports.Render(ctx, id, format)
}
