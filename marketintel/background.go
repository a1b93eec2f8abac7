// CLAUDE:SUMMARY Background work: queue task handlers, enqueue helpers and the cron schedule (scrape, daily/weekly reports, cleanup).
package marketintel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/marketintel/marketintel/internal/jobs"
	"github.com/hazyhaar/marketintel/marketintel/internal/report"
)

// Scheduled job names.
const (
	JobScrapeAll     = "scrape_all"
	JobDailyReports  = "daily_reports"
	JobWeeklyReports = "weekly_reports"
	JobCleanup       = "cleanup"
)

type reportTask struct {
	CompanyID  string `json:"company_id"`
	Kind       string `json:"kind"`
	WindowDays int    `json:"window_days,omitempty"`
}

// EnqueueScrape queues a scrape of one active product and returns the task ID.
// The task is retried with backoff on fetch failures.
func (svc *Service) EnqueueScrape(ctx context.Context, productID string) (string, error) {
	p, err := svc.GetProduct(ctx, productID)
	if err != nil {
		return "", err
	}
	if !p.Active {
		return "", fmt.Errorf("%w: product %s is inactive", ErrNotFound, productID)
	}
	return svc.queue.Enqueue(ctx, jobs.KindScrapeProduct, []byte(productID))
}

// EnqueueAllActive queues one scrape task per scrapable product and returns
// how many were queued.
func (svc *Service) EnqueueAllActive(ctx context.Context) (int, error) {
	products, err := svc.store.ListScrapableProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	n := 0
	for _, p := range products {
		if _, err := svc.queue.Enqueue(ctx, jobs.KindScrapeProduct, []byte(p.ID)); err != nil {
			return n, err
		}
		n++
	}
	svc.logger.InfoContext(ctx, "marketintel: scrapes queued", "count", n)
	return n, nil
}

// EnqueueReport queues a report generation and returns the task ID.
func (svc *Service) EnqueueReport(ctx context.Context, companyID, kind string, windowDays int) (string, error) {
	if !report.ValidKind(kind) {
		return "", fmt.Errorf("%w: unknown report kind %q", ErrValidation, kind)
	}
	if _, err := svc.GetCompany(ctx, companyID); err != nil {
		return "", err
	}
	payload, err := json.Marshal(reportTask{CompanyID: companyID, Kind: kind, WindowDays: windowDays})
	if err != nil {
		return "", err
	}
	return svc.queue.Enqueue(ctx, jobs.KindGenerateReport, payload)
}

// EnqueuePeriodicReports queues a report of kind for every active company.
func (svc *Service) EnqueuePeriodicReports(ctx context.Context, kind string) (int, error) {
	companies, err := svc.store.ListCompanies(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("list companies: %w", err)
	}
	n := 0
	for _, c := range companies {
		if _, err := svc.EnqueueReport(ctx, c.ID, kind, 0); err != nil {
			return n, err
		}
		n++
	}
	svc.logger.InfoContext(ctx, "marketintel: reports queued", "kind", kind, "count", n)
	return n, nil
}

// RunPendingTasks executes every visible queued task synchronously and
// returns how many ran. Start runs them in the background instead.
func (svc *Service) RunPendingTasks(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := svc.queue.RunOnce(ctx)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}

// QueueLength returns the number of queued tasks.
func (svc *Service) QueueLength(ctx context.Context) (int, error) {
	return svc.queue.Len(ctx)
}

// ScheduledJobs returns the names of the cron jobs.
func (svc *Service) ScheduledJobs() []string { return svc.scheduler.Jobs() }

// RunJob runs a scheduled job now, synchronously.
func (svc *Service) RunJob(name string) error { return svc.scheduler.RunNow(name) }

func (svc *Service) handleScrapeTask(ctx context.Context, payload []byte) error {
	_, err := svc.dispatcher.ScrapeProduct(ctx, string(payload))
	return err
}

func (svc *Service) handleReportTask(ctx context.Context, payload []byte) error {
	var t reportTask
	if err := json.Unmarshal(payload, &t); err != nil {
		return fmt.Errorf("%w: report task: %v", ErrValidation, err)
	}
	_, err := svc.reports.Generate(ctx, t.CompanyID, t.Kind, t.WindowDays)
	return err
}

func (svc *Service) schedule() error {
	s := svc.config.Schedule
	entries := []struct {
		name, spec string
		unit       jobs.Unit
	}{
		{JobScrapeAll, s.Scrape, func(ctx context.Context) error {
			_, err := svc.EnqueueAllActive(ctx)
			return err
		}},
		{JobDailyReports, s.DailyReports, func(ctx context.Context) error {
			_, err := svc.EnqueuePeriodicReports(ctx, report.Daily)
			return err
		}},
		{JobWeeklyReports, s.WeeklyReports, func(ctx context.Context) error {
			_, err := svc.EnqueuePeriodicReports(ctx, report.Weekly)
			return err
		}},
		{JobCleanup, s.Cleanup, func(ctx context.Context) error {
			_, err := svc.Cleanup(ctx)
			return err
		}},
	}
	for _, e := range entries {
		if e.spec == "off" {
			continue
		}
		if err := svc.scheduler.Add(e.name, e.spec, e.unit); err != nil {
			return fmt.Errorf("%w: schedule: %v", ErrValidation, err)
		}
	}
	return nil
}
