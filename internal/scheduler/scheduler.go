package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Pruner deletes measurements dated before cutoff.
// series.PersistenceCoordinator implements it.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionObserver is told how many measurements each run removed.
type RetentionObserver interface {
	ObserveRetention(deleted int64)
}

// Scheduler periodically deletes measurements older than the retention window.
type Scheduler struct {
	scheduler *gocron.Scheduler
	pruner    Pruner
	observer  RetentionObserver
	maxAge    time.Duration
	interval  time.Duration
	now       func() time.Time
}

// New creates a new Scheduler. observer may be nil.
func New(pruner Pruner, maxAge, interval time.Duration, observer RetentionObserver) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		pruner:    pruner,
		observer:  observer,
		maxAge:    maxAge,
		interval:  interval,
		now:       time.Now,
	}
}

// Start schedules the retention job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.maxAge <= 0 || s.pruner == nil {
		slog.Info("scheduler: retention disabled; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := s.RunOnce(ctx); err != nil {
			slog.Error("scheduler: retention run failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce deletes everything dated before now minus the retention window.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.maxAge)
	deleted, err := s.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if s.observer != nil {
		s.observer.ObserveRetention(deleted)
	}
	slog.Info("scheduler: retention run completed", "cutoff", cutoff.Format(time.DateOnly), "deleted", deleted)
	return deleted, nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
