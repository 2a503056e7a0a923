package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"EmailManager/internal/domain"
	"EmailManager/internal/logging"
)

func TestConcurrentTriggerIsRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t, sampleMessages())
	h.reader.entered = make(chan struct{})
	h.reader.release = make(chan struct{})

	id, err := h.runner.Start(context.Background(), domain.TriggerManual)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	<-h.reader.entered

	_, err = h.runner.Start(context.Background(), domain.TriggerManual)
	require.ErrorIs(t, err, ErrRunInProgress)
	_, err = h.runner.Run(context.Background(), domain.TriggerSchedule)
	require.ErrorIs(t, err, ErrRunInProgress)

	current, _ := h.runner.Status()
	require.True(t, current.IsSome())
	active := current.UnwrapOr(domain.ReportRun{})
	require.Equal(t, id, active.ID)
	require.Equal(t, domain.StateFetching, active.State)

	close(h.reader.release)

	require.Eventually(t, func() bool {
		current, last := h.runner.Status()
		return current.IsNone() && last.IsSome()
	}, 2*time.Second, 5*time.Millisecond)

	_, last := h.runner.Status()
	finished := last.UnwrapOr(domain.ReportRun{})
	require.Equal(t, id, finished.ID)
	require.Equal(t, domain.StateDone, finished.State)
	require.Equal(t, []string{"fetch", "summarize", "send"}, h.log.all())

	// The guard is released once the run finishes.
	run, err := h.runner.Run(context.Background(), domain.TriggerCLI)
	require.NoError(t, err)
	require.Equal(t, domain.StateDone, run.State)
}

func TestStatusBeforeAnyRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	current, last := h.runner.Status()
	require.True(t, current.IsNone())
	require.True(t, last.IsNone())
}

func TestScheduledTickSkippedWhileRunActive(t *testing.T) {
	t.Parallel()

	h := newHarness(t, sampleMessages())
	h.reader.entered = make(chan struct{})
	h.reader.release = make(chan struct{})

	_, err := h.runner.Start(context.Background(), domain.TriggerManual)
	require.NoError(t, err)
	<-h.reader.entered

	driver := &manualDriver{}
	sched := NewScheduler(driver, h.runner, logging.Discard())
	require.NoError(t, sched.Start(context.Background()))

	driver.fire(time.Now())
	require.Equal(t, []string{"fetch"}, h.log.all())

	close(h.reader.release)
	require.NoError(t, sched.Stop(context.Background()))
	require.True(t, driver.stopped)
}

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *manualDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func (d *manualDriver) NextRunAt() (time.Time, bool) {
	return time.Time{}, d.job != nil
}

func (d *manualDriver) fire(t time.Time) {
	d.job(t)
}
