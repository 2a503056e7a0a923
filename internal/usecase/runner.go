package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"

	"EmailManager/internal/domain"
)

// ErrRunInProgress is returned when a report run is requested while another
// one is still active.
var ErrRunInProgress = errors.New("report run already in progress")

// Runner guards the pipeline so at most one report run is active, and keeps
// the current and last run for status reporting.
type Runner struct {
	pipeline *Pipeline
	logger   *slog.Logger
	now      func() time.Time

	guard sync.Mutex

	mu      sync.Mutex
	current fn.Option[domain.ReportRun]
	last    fn.Option[domain.ReportRun]
}

// NewRunner wraps a pipeline with the single-run guard.
func NewRunner(pipeline *Pipeline, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{pipeline: pipeline, logger: logger, now: time.Now}
}

// Run executes a report synchronously and returns the finished run.
func (r *Runner) Run(ctx context.Context, trigger domain.Trigger) (domain.ReportRun, error) {
	id, err := r.acquire(trigger)
	if err != nil {
		return domain.ReportRun{}, err
	}
	return r.execute(ctx, id)
}

// Start acquires the guard synchronously and runs the report in the
// background. The returned id identifies the run in Status.
func (r *Runner) Start(ctx context.Context, trigger domain.Trigger) (string, error) {
	id, err := r.acquire(trigger)
	if err != nil {
		return "", err
	}
	go func() {
		_, _ = r.execute(ctx, id)
	}()
	return id, nil
}

// Status returns the active run (if any) and the last finished run.
func (r *Runner) Status() (current, last fn.Option[domain.ReportRun]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.last
}

func (r *Runner) acquire(trigger domain.Trigger) (string, error) {
	if !r.guard.TryLock() {
		return "", ErrRunInProgress
	}

	run := domain.ReportRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: r.now(),
		State:     domain.StateIdle,
	}
	r.mu.Lock()
	r.current = fn.Some(run)
	r.mu.Unlock()

	r.logger.Info("report run started", "run_id", run.ID, "trigger", trigger)
	return run.ID, nil
}

func (r *Runner) execute(ctx context.Context, id string) (domain.ReportRun, error) {
	defer r.guard.Unlock()

	update := func(mutate func(run *domain.ReportRun)) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.current.WhenSome(func(run domain.ReportRun) {
			mutate(&run)
			r.current = fn.Some(run)
		})
	}

	err := r.pipeline.Execute(ctx, update)

	r.mu.Lock()
	finished := r.current.UnwrapOr(domain.ReportRun{ID: id})
	r.last = fn.Some(finished)
	r.current = fn.None[domain.ReportRun]()
	r.mu.Unlock()

	r.logger.Info("report run finished", "run_id", id, "state", finished.State,
		"fetched", finished.FetchedCount, "sent", finished.Sent)
	return finished, err
}
