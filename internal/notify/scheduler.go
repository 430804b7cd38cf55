package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// jobTimeout bounds a single scheduled run.
const jobTimeout = 2 * time.Minute

// Scheduler runs named jobs on cron schedules.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates a scheduler using standard five-field cron expressions.
func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Add schedules fn under spec. Failures are logged, not retried.
func (s *Scheduler) Add(spec, name string, fn func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			slog.Error("scheduled job failed", "job", name, "error", err)
			return
		}
		slog.Info("scheduled job finished", "job", name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", name, err)
	}
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	slog.Info("starting scheduler", "jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	slog.Info("stopping scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// NotificationJob adapts a Notifier to a scheduled job.
func NotificationJob(n *Notifier) func(context.Context) error {
	return func(ctx context.Context) error {
		res, err := n.Run(ctx)
		if err != nil {
			return err
		}
		if !res.Sent {
			slog.Info("expiry notification skipped", "reason", res.Reason)
		}
		return nil
	}
}
