package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/team-balancer/internal/config"
)

// Purger removes alerts past their retention window
type Purger interface {
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
}

// PurgeWorker runs alert retention on a cron schedule
type PurgeWorker struct {
	purger  Purger
	config  *config.AlertsConfig
	logger  *slog.Logger
	cron    *cron.Cron
	timeout time.Duration
	mu      sync.Mutex
	running bool
}

// NewPurgeWorker creates a new purge worker
func NewPurgeWorker(purger Purger, cfg *config.AlertsConfig, logger *slog.Logger) *PurgeWorker {
	return &PurgeWorker{
		purger:  purger,
		config:  cfg,
		logger:  logger,
		cron:    cron.New(),
		timeout: time.Minute,
	}
}

// Start schedules the purge job
func (w *PurgeWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if _, err := w.cron.AddFunc(w.config.PurgeSchedule, w.runScheduled); err != nil {
		return fmt.Errorf("scheduling alert purge %q: %w", w.config.PurgeSchedule, err)
	}
	w.cron.Start()
	w.running = true

	w.logger.Info("purge worker started",
		"schedule", w.config.PurgeSchedule,
		"retention_days", w.config.RetentionDays,
	)
	return nil
}

// Stop waits for a running purge to finish
func (w *PurgeWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}

	<-w.cron.Stop().Done()
	w.running = false
	w.logger.Info("purge worker stopped")
}

// IsRunning returns whether the schedule is active
func (w *PurgeWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// NextRun returns the next scheduled purge, zero when not running
func (w *PurgeWorker) NextRun() time.Time {
	entries := w.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (w *PurgeWorker) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("alert purge failed", "error", err)
	}
}

// RunOnce purges alerts older than the retention window
func (w *PurgeWorker) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	removed, err := w.purger.PurgeOlderThan(ctx, w.config.RetentionDays)
	if err != nil {
		return 0, err
	}

	w.logger.Info("alert purge completed",
		"removed", removed,
		"retention_days", w.config.RetentionDays,
		"duration", time.Since(start),
	)
	return removed, nil
}
