package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs named units on cron expressions.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration

	mu    sync.Mutex
	units map[string]Unit
}

// NewScheduler creates a Scheduler evaluating expressions in UTC. Every run
// gets its own context bounded by timeout (default 1h).
func NewScheduler(timeout time.Duration, logger *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		logger:  logger.With("component", "scheduler"),
		timeout: timeout,
		units:   make(map[string]Unit),
	}
}

// Add schedules unit under name. spec is a standard 5-field cron expression
// or a descriptor such as "@hourly".
func (s *Scheduler) Add(name, spec string, unit Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.units[name]; dup {
		return fmt.Errorf("scheduler: duplicate job %q", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.RunNow(name) }); err != nil {
		return fmt.Errorf("scheduler: job %q: %w", name, err)
	}
	s.units[name] = unit
	s.logger.Info("scheduler: job added", "job", name, "spec", spec)
	return nil
}

// RunNow executes the named unit synchronously, as a tick would.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	unit, ok := s.units[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown job %q", name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	start := time.Now()
	if err := unit(ctx); err != nil {
		s.logger.Error("scheduler: job failed", "job", name, "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return err
	}
	s.logger.Info("scheduler: job completed", "job", name,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Jobs returns the scheduled job names, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.units))
	for n := range s.units {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler: started", "jobs", len(s.units))
	s.cron.Start()
}

// Stop halts the schedule and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("scheduler: stopped")
}
