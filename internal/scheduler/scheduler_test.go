package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/picker/pkg/logger"
)

// stubJob fails its first `failures` runs, then succeeds.
type stubJob struct {
	name     string
	schedule string

	mu   sync.Mutex
	runs int

	failures int
}

func (j *stubJob) Name() string { return j.name }

func (j *stubJob) Schedule() string {
	if j.schedule == "" {
		return "0 0 0 * * *"
	}
	return j.schedule
}

func (j *stubJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	if j.runs <= j.failures {
		return errors.New("boom")
	}
	return nil
}

func (j *stubJob) runCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func testScheduler() *Scheduler {
	s := New(logger.Nop())
	s.SetRetryPolicy(0, time.Millisecond)
	return s
}

// waitForRuns blocks until the job's history holds want results.
// GetJobStats reads under the scheduler lock, so polling it also
// synchronizes later direct reads of the history.
func waitForRuns(t *testing.T, s *Scheduler, jobName string, want int) {
	t.Helper()
	ok := assert.Eventually(t, func() bool {
		return s.GetJobStats()[jobName].TotalRuns >= want
	}, 2*time.Second, 5*time.Millisecond)
	if !ok {
		t.Fatalf("job %s never reached %d runs", jobName, want)
	}
}

func TestAddJob(t *testing.T) {
	s := testScheduler()
	job := &stubJob{name: "daily_scan"}

	require.NoError(t, s.AddJob(job))
	assert.Contains(t, s.GetAllJobs(), "daily_scan")

	err := s.AddJob(job)
	assert.ErrorContains(t, err, "already exists")
}

func TestAddJobBadSchedule(t *testing.T) {
	s := testScheduler()
	job := &stubJob{name: "broken", schedule: "not a cron spec"}

	assert.Error(t, s.AddJob(job))
	assert.Empty(t, s.GetAllJobs())
}

func TestRunJob(t *testing.T) {
	s := testScheduler()
	job := &stubJob{name: "daily_scan"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("daily_scan"))
	waitForRuns(t, s, "daily_scan", 1)

	stats := s.GetJobStats()["daily_scan"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 0, stats.FailureCount)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.Equal(t, "0 0 0 * * *", stats.Schedule)
	assert.NotNil(t, stats.LastRun)
	assert.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)

	history, err := s.GetJobHistory("daily_scan")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.True(t, history.Results[0].Success)
	assert.Empty(t, history.Results[0].Error)
}

func TestRunJobUnknown(t *testing.T) {
	s := testScheduler()

	assert.ErrorContains(t, s.RunJob("missing"), "not found")

	_, err := s.GetJobHistory("missing")
	assert.ErrorContains(t, err, "not found")
}

func TestRunJobRetriesUntilSuccess(t *testing.T) {
	s := testScheduler()
	s.SetRetryPolicy(3, time.Millisecond)
	job := &stubJob{name: "flaky", failures: 2}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	waitForRuns(t, s, "flaky", 1)

	// Two failed attempts, then the third succeeds. Only the final
	// outcome lands in history.
	assert.Equal(t, 3, job.runCount())
	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 0, stats.FailureCount)
}

func TestRunJobRetriesExhausted(t *testing.T) {
	s := testScheduler()
	s.SetRetryPolicy(1, time.Millisecond)
	job := &stubJob{name: "hopeless", failures: 10}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("hopeless"))
	waitForRuns(t, s, "hopeless", 1)

	assert.Equal(t, 2, job.runCount())
	stats := s.GetJobStats()["hopeless"]
	assert.Equal(t, 0, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailureCount)
	assert.Equal(t, 0.0, stats.SuccessRate)
	assert.NotNil(t, stats.LastFailure)

	history, err := s.GetJobHistory("hopeless")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.Equal(t, "boom", history.Results[0].Error)
}

func TestRemoveJob(t *testing.T) {
	s := testScheduler()
	job := &stubJob{name: "daily_scan"}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("daily_scan"))
	waitForRuns(t, s, "daily_scan", 1)

	require.NoError(t, s.RemoveJob("daily_scan"))
	assert.NotContains(t, s.GetAllJobs(), "daily_scan")
	assert.ErrorContains(t, s.RemoveJob("daily_scan"), "not found")

	// History survives removal, but the schedule is gone.
	history, err := s.GetJobHistory("daily_scan")
	require.NoError(t, err)
	assert.Len(t, history.Results, 1)
	assert.Equal(t, "", s.GetJobStats()["daily_scan"].Schedule)
}

func TestScheduledDispatch(t *testing.T) {
	s := testScheduler()
	job := &stubJob{name: "ticker", schedule: "* * * * * *"}
	require.NoError(t, s.AddJob(job))

	s.Start()
	defer s.Stop()

	waitForRuns(t, s, "ticker", 1)
	assert.GreaterOrEqual(t, job.runCount(), 1)
}
