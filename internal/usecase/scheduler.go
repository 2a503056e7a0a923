package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"EmailManager/internal/domain"
	"EmailManager/internal/ports"
)

// Scheduler wires the interval driver with the report runner.
type Scheduler struct {
	driver ports.Scheduler
	runner *Runner
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring report runs.
func NewScheduler(driver ports.Scheduler, runner *Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, runner: runner, logger: logger}
}

// Start registers the report job with the driver. A tick that collides with
// an active run is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	job := func(tick time.Time) {
		_, err := s.runner.Run(ctx, domain.TriggerSchedule)
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Warn("scheduled run skipped, another run is active", "tick", tick)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

// NextRunAt reports the next planned tick.
func (s *Scheduler) NextRunAt() (time.Time, bool) {
	if s.driver == nil {
		return time.Time{}, false
	}
	return s.driver.NextRunAt()
}
