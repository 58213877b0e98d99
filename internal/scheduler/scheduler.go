// Package scheduler runs the retry dispatcher. Files parked in retry_pending
// carry a next_retry_at timestamp; once it passes, the dispatcher re-enters
// them into the pipeline queue.
package scheduler

import (
	"context"
	"errors"
	"time"

	"library-backend/internal/processing"
	"library-backend/internal/shared/telemetry"
	"library-backend/internal/workflow"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultBatchLimit   = 50
)

// Requeuer re-enters one file into the pipeline.
type Requeuer interface {
	Requeue(ctx context.Context, fileID string) error
}

// Dispatcher polls for due retries and requeues them.
type Dispatcher struct {
	Repo     processing.Repo
	Service  Requeuer
	Interval time.Duration
	Limit    int

	now func() time.Time
}

// NewDispatcher builds a dispatcher with default polling settings.
func NewDispatcher(repo processing.Repo, svc Requeuer) *Dispatcher {
	return &Dispatcher{
		Repo:     repo,
		Service:  svc,
		Interval: defaultPollInterval,
		Limit:    defaultBatchLimit,
		now:      time.Now,
	}
}

// Run polls until the context is cancelled. Each tick dispatches every due
// file; individual failures are logged and skipped so one bad row cannot
// stall the rest.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := d.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DispatchDue(ctx); err != nil {
				telemetry.Error("retry.poll_failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// DispatchDue requeues every retry_pending file whose backoff has elapsed.
// Returns the number of files successfully requeued.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	limit := d.Limit
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	due, err := d.Repo.ListRetryDue(ctx, d.now().UTC(), limit)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, file := range due {
		if err := d.Service.Requeue(ctx, file.ID); err != nil {
			// A stale or invalid transition means the file moved since the
			// list query (another dispatcher instance, or a cancellation).
			if errors.Is(err, workflow.ErrStaleTransition) || errors.Is(err, workflow.ErrInvalidTransition) {
				continue
			}
			telemetry.Error("retry.requeue_failed", map[string]any{
				"file_id": file.ID,
				"error":   err.Error(),
			})
			continue
		}
		dispatched++
		telemetry.Info("retry.requeued", map[string]any{
			"file_id":     file.ID,
			"batch_id":    file.BatchID,
			"retry_count": file.RetryCount,
		})
	}
	return dispatched, nil
}
