package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/marketintel/idgen"
)

// QueueSchema is the task table. Claimed rows stay invisible until
// visible_at; a worker that dies mid-task lets the row reappear.
const QueueSchema = `
CREATE TABLE IF NOT EXISTS job_queue (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    payload     BLOB,
    visible_at  INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,
    attempts    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_job_queue_visible ON job_queue(visible_at);
`

// Task kinds enqueued by the service.
const (
	KindScrapeProduct  = "scrape_product"
	KindGenerateReport = "generate_report"
)

// Task is a claimed row of the queue.
type Task struct {
	ID        string
	Kind      string
	Payload   []byte
	CreatedAt time.Time
	Attempts  int // deliveries, including this one
}

// Handler processes the payload of one task kind.
type Handler func(ctx context.Context, payload []byte) error

// Observer receives task outcomes (metrics).
type Observer interface {
	TaskDone(kind, outcome string)
}

// Task outcome labels.
const (
	OutcomeDone      = "done"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
)

// QueueConfig tunes the queue.
type QueueConfig struct {
	Workers      int           // concurrent tasks. Default: 5.
	MaxAttempts  int           // attempts per delivery through Run. Default: 3.
	Backoff      time.Duration // base retry backoff. Default: 60s.
	Visibility   time.Duration // how long a claimed task stays hidden. Default: 30m.
	PollInterval time.Duration // claim cadence. Default: 1s.
	MaxDelivery  int           // deliveries before a task is dropped. Default: 3.
}

func (c *QueueConfig) defaults() {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 60 * time.Second
	}
	if c.Visibility <= 0 {
		c.Visibility = 30 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxDelivery <= 0 {
		c.MaxDelivery = 3
	}
}

// Queue is a SQLite-backed task queue worked by a bounded pool.
type Queue struct {
	db       *sql.DB
	cfg      QueueConfig
	newID    idgen.Generator
	observer Observer
	logger   *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the logger.
func WithQueueLogger(l *slog.Logger) QueueOption { return func(q *Queue) { q.logger = l } }

// WithQueueObserver reports task outcomes.
func WithQueueObserver(o Observer) QueueOption { return func(q *Queue) { q.observer = o } }

// NewQueue creates a queue handle. Call EnsureTable once at startup.
func NewQueue(db *sql.DB, cfg QueueConfig, opts ...QueueOption) *Queue {
	cfg.defaults()
	q := &Queue{
		db:       db,
		cfg:      cfg,
		newID:    idgen.Job,
		handlers: make(map[string]Handler),
	}
	for _, o := range opts {
		o(q)
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	q.logger = q.logger.With("component", "jobs")
	return q
}

// EnsureTable creates the queue table if missing.
func (q *Queue) EnsureTable(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, QueueSchema)
	return err
}

// Handle registers the handler for a task kind.
func (q *Queue) Handle(kind string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Enqueue adds a task that is immediately visible and returns its ID.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload []byte) (string, error) {
	id := q.newID()
	now := time.Now().UnixMilli()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO job_queue (id, kind, payload, visible_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, kind, payload, now, now)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return id, nil
}

// Claim hides up to n visible tasks for the visibility window and returns them.
func (q *Queue) Claim(ctx context.Context, n int) ([]*Task, error) {
	now := time.Now()
	rows, err := q.db.QueryContext(ctx, `
		UPDATE job_queue
		SET visible_at = ?, attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM job_queue
			WHERE visible_at <= ?
			ORDER BY visible_at ASC, created_at ASC
			LIMIT ?
		)
		RETURNING id, kind, payload, created_at, attempts`,
		now.Add(q.cfg.Visibility).UnixMilli(), now.UnixMilli(), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*Task{}
	for rows.Next() {
		var t Task
		var created int64
		if err := rows.Scan(&t.ID, &t.Kind, &t.Payload, &created, &t.Attempts); err != nil {
			return nil, err
		}
		t.CreatedAt = time.UnixMilli(created)
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// Ack deletes a finished task.
func (q *Queue) Ack(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM job_queue WHERE id = ?`, id)
	return err
}

// Nack makes a task visible again immediately.
func (q *Queue) Nack(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE job_queue SET visible_at = 0 WHERE id = ?`, id)
	return err
}

// Len returns the number of queued tasks, visible or not.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_queue`).Scan(&n)
	return n, err
}

// Run claims tasks and executes them with at most Workers in flight. It
// blocks until ctx is cancelled, then drains in-flight tasks.
func (q *Queue) Run(ctx context.Context) {
	q.logger.Info("jobs: queue started", "workers", q.cfg.Workers, "poll", q.cfg.PollInterval)
	sem := make(chan struct{}, q.cfg.Workers)
	var wg sync.WaitGroup

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			q.logger.Info("jobs: queue stopped")
			return
		case <-ticker.C:
		}

		free := q.cfg.Workers - len(sem)
		if free <= 0 {
			continue
		}
		tasks, err := q.Claim(ctx, free)
		if err != nil {
			if ctx.Err() == nil {
				q.logger.Warn("jobs: claim failed", "error", err)
			}
			continue
		}
		for _, t := range tasks {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				_ = q.Nack(context.Background(), t.ID)
				continue
			}
			wg.Add(1)
			go func(t *Task) {
				defer wg.Done()
				defer func() { <-sem }()
				q.execute(ctx, t)
			}(t)
		}
	}
}

// RunOnce claims and executes every visible task synchronously. It returns
// how many tasks were processed.
func (q *Queue) RunOnce(ctx context.Context) (int, error) {
	tasks, err := q.Claim(ctx, q.cfg.Workers)
	if err != nil {
		return 0, err
	}
	for _, t := range tasks {
		q.execute(ctx, t)
	}
	return len(tasks), nil
}

func (q *Queue) execute(ctx context.Context, t *Task) {
	log := q.logger.With("task_id", t.ID, "kind", t.Kind, "delivery", t.Attempts)

	q.mu.RLock()
	h, ok := q.handlers[t.Kind]
	q.mu.RUnlock()
	if !ok || t.Attempts > q.cfg.MaxDelivery {
		log.Warn("jobs: discarding task", "known_kind", ok)
		q.finish(t, OutcomeDiscarded)
		return
	}

	err := Run(ctx, func(ctx context.Context) error { return h(ctx, t.Payload) },
		q.cfg.MaxAttempts, q.cfg.Backoff, log)
	switch {
	case err == nil:
		q.finish(t, OutcomeDone)
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		// Shutdown: leave it for the next process.
		_ = q.Nack(context.Background(), t.ID)
	default:
		log.Warn("jobs: task failed", "error", err)
		q.finish(t, OutcomeFailed)
	}
}

func (q *Queue) finish(t *Task, outcome string) {
	if err := q.Ack(context.Background(), t.ID); err != nil {
		q.logger.Warn("jobs: ack failed", "task_id", t.ID, "error", err)
	}
	if q.observer != nil {
		q.observer.TaskDone(t.Kind, outcome)
	}
}
