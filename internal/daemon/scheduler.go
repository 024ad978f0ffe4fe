package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/harvestcycle/internal/logfields"
	"git.home.luguber.info/inful/harvestcycle/internal/metrics"
	"git.home.luguber.info/inful/harvestcycle/internal/retry"
)

// Saver persists the overview when it changed. *cycle.Store satisfies it.
type Saver interface {
	SaveChanged(ctx context.Context) (bool, error)
}

// Scheduler wraps gocron scheduler for managing periodic saves.
type Scheduler struct {
	scheduler gocron.Scheduler
	policy    retry.Policy
	recorder  metrics.Recorder
}

// NewScheduler creates a new scheduler instance. Failed saves are retried
// according to policy.
func NewScheduler(policy retry.Policy, recorder metrics.Recorder) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	return &Scheduler{
		scheduler: s,
		policy:    policy,
		recorder:  recorder,
	}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	slog.InfoContext(ctx, "Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	slog.InfoContext(ctx, "Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleAutoSave saves target every interval. Intervals in which the
// overview did not change write nothing.
// Returns the job ID for later management.
func (s *Scheduler) ScheduleAutoSave(ctx context.Context, interval time.Duration, target Saver) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("autosave interval must be positive, got %s", interval)
	}
	if target == nil {
		return "", fmt.Errorf("autosave target is nil")
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.executeSave, ctx, target),
		gocron.WithName("autosave"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create autosave job: %w", err)
	}

	return job.ID().String(), nil
}

// executeSave is called by gocron to execute a scheduled save.
func (s *Scheduler) executeSave(ctx context.Context, target Saver) {
	jobID := fmt.Sprintf("autosave-%d", time.Now().Unix())
	slog.Debug("Executing scheduled save", logfields.JobID(jobID))

	written := false
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		written, err = target.SaveChanged(ctx)
		return err
	}, func(int, error) {
		s.recorder.IncSaveRetry()
	})
	if err != nil {
		slog.Error("Scheduled save failed",
			logfields.JobID(jobID),
			logfields.Error(err))
		return
	}
	if written {
		slog.Debug("Scheduled save wrote overview", logfields.JobID(jobID))
	}
}
