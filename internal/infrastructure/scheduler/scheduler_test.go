package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsepet/progression/pkg/logger"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	panic bool
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job " + j.name }
func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logger = logger.Nop()
	cfg.StopTimeout = time.Second
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func TestRegister_Validation(t *testing.T) {
	s := newTestScheduler(t)
	job := &countingJob{name: "a"}

	assert.ErrorIs(t, s.Register(nil, gocron.DurationJob(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(job, nil), ErrNilSchedule)

	require.NoError(t, s.Register(job, gocron.DurationJob(time.Hour)))
	assert.ErrorIs(t, s.Register(job, gocron.DurationJob(time.Hour)), ErrJobAlreadyExists)

	assert.ErrorIs(t, s.Unregister("missing"), ErrJobNotFound)
	require.NoError(t, s.Unregister("a"))
	assert.Empty(t, s.ListJobs())
}

func TestRegister_RejectsBadCron(t *testing.T) {
	s := newTestScheduler(t)
	err := s.Register(&countingJob{name: "bad"}, gocron.CronJob("not a cron", false))
	assert.Error(t, err)
}

func TestRunNow_RecordsHistory(t *testing.T) {
	s := newTestScheduler(t)
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("nope")}
	require.NoError(t, s.Register(ok, gocron.DurationJob(time.Hour)))
	require.NoError(t, s.Register(failing, gocron.DurationJob(time.Hour)))

	var completed []string
	s.OnJobComplete(func(r JobResult) { completed = append(completed, r.JobName) })

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)

	res, err = s.RunNow(context.Background(), "failing")
	assert.Error(t, err)
	assert.False(t, res.Success)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	history := s.GetHistory(10)
	require.Len(t, history, 2)
	assert.Equal(t, "ok", history[0].JobName)
	assert.Equal(t, "failing", history[1].JobName)
	assert.Equal(t, []string{"ok", "failing"}, completed)

	info, err := s.GetJobInfo("failing")
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.RunCount)
	assert.EqualValues(t, 1, info.FailCount)

	snap := s.Metrics().Snapshot()
	assert.EqualValues(t, 2, snap.TotalExecutions)
	assert.EqualValues(t, 1, snap.TotalFailures)
	assert.InDelta(t, 0.5, snap.SuccessRate, 0.001)
}

func TestRunNow_RecoversPanic(t *testing.T) {
	s := newTestScheduler(t)
	job := &countingJob{name: "panicky", panic: true}
	require.NoError(t, s.Register(job, gocron.DurationJob(time.Hour)))

	res, err := s.RunNow(context.Background(), "panicky")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.False(t, res.Success)
}

func TestStartStop_RunsScheduledJob(t *testing.T) {
	s := newTestScheduler(t)
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Register(job, gocron.DurationJob(20*time.Millisecond)))

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrSchedulerAlreadyRunning)
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	assert.False(t, s.IsRunning())
	assert.NotEmpty(t, s.GetHistory(0))
}
