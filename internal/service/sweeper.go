package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-co-op/gocron/v2"
	"github.com/set-night/questbot/internal/config"
)

// Sweeper owns the two periodic timers: the reconciliation sweep and the
// new-task notification sweep. Each job runs in singleton mode, so an
// overrunning sweep is rescheduled instead of stacked.
type Sweeper struct {
	scheduler     gocron.Scheduler
	reconciler    *Reconciler
	notifications *Notifications
}

func NewSweeper(reconciler *Reconciler, notifications *Notifications) (*Sweeper, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Sweeper{
		scheduler:     scheduler,
		reconciler:    reconciler,
		notifications: notifications,
	}, nil
}

// Start registers both jobs and begins the schedule. The context bounds each
// sweep's gateway calls.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(config.ReconcileInterval),
		gocron.NewTask(func() { s.reconciler.SweepAll(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule reconciliation sweep: %w", err)
	}

	_, err = s.scheduler.NewJob(
		gocron.DurationJob(config.NotifyInterval),
		gocron.NewTask(func() { s.notifications.SweepAll(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule notification sweep: %w", err)
	}

	s.scheduler.Start()
	slog.Info("sweeper started",
		"reconcile_interval", config.ReconcileInterval,
		"notify_interval", config.NotifyInterval)
	return nil
}

// Stop shuts the scheduler down, waiting for in-flight jobs.
func (s *Sweeper) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		slog.Error("scheduler shutdown", "error", err)
	}
}
