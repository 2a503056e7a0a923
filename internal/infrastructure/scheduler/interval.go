package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"EmailManager/internal/ports"
)

// IntervalScheduler fires a job on a fixed interval from one goroutine.
type IntervalScheduler struct {
	interval     time.Duration
	runOnStart   bool
	startupDelay time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	next   time.Time
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// Options configure an IntervalScheduler.
type Options struct {
	Interval time.Duration
	// RunOnStart fires the first run after StartupDelay instead of after a
	// full interval.
	RunOnStart   bool
	StartupDelay time.Duration
	Logger       *slog.Logger
}

// NewIntervalScheduler builds a stopped scheduler.
func NewIntervalScheduler(opts Options) *IntervalScheduler {
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}
	if opts.StartupDelay < 0 {
		opts.StartupDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &IntervalScheduler{
		interval:     opts.Interval,
		runOnStart:   opts.RunOnStart,
		startupDelay: opts.StartupDelay,
		logger:       opts.Logger,
	}
}

// Start returns immediately. Ticks keep a fixed rate from the first run. The
// job runs on the scheduler goroutine, so a slow job never overlaps the next
// tick.
func (s *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	first := s.interval
	if s.runOnStart {
		first = s.startupDelay
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.next = time.Now().Add(first)

	s.logger.Info("scheduler started", "interval", s.interval, "first_run", s.next)

	go func() {
		defer close(done)
		timer := time.NewTimer(first)
		defer timer.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case t := <-timer.C:
				next := t.Add(s.interval)
				s.setNext(runCtx, next)
				job(t)

				// Ticks missed while the job ran are skipped, not queued.
				if now := time.Now(); !next.After(now) {
					next = next.Add(s.interval * (now.Sub(next)/s.interval + 1))
					s.setNext(runCtx, next)
				}
				timer.Reset(time.Until(next))
			}
		}
	}()

	return nil
}

func (s *IntervalScheduler) setNext(ctx context.Context, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() == nil {
		s.next = next
	}
}

// Stop cancels the ticker goroutine and waits for it, bounded by ctx.
// A job that is already running is not interrupted.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.next = time.Time{}
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextRunAt reports the next planned tick while the scheduler is running.
func (s *IntervalScheduler) NextRunAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return time.Time{}, false
	}
	return s.next, true
}

// Running reports whether Start has been called without a matching Stop.
func (s *IntervalScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Interval returns the configured tick interval.
func (s *IntervalScheduler) Interval() time.Duration {
	return s.interval
}
