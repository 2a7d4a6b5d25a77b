// manager_test.go - Tests for the job manager
package porter

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensei-lms/dataport/internal/models"
)

type stubRunner struct {
	run func(ctx context.Context, job *Job) error
}

func (r stubRunner) Run(ctx context.Context, job *Job) error {
	return r.run(ctx, job)
}

func TestManager_ActiveJob(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	_, err := m.ActiveJob(ctx, "user-1")
	require.ErrorIs(t, err, ErrNoActiveJob)

	created, err := m.CreateJob(ctx, "user-1")
	require.NoError(t, err)

	active, err := m.ActiveJob(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID(), active.ID())
}

func TestManager_CreateJob(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	job, err := m.CreateJob(ctx, "user-1")
	require.NoError(t, err)

	status := job.Status()
	assert.Equal(t, models.StageSetup, status.Status)
	assert.Equal(t, 0, status.Percentage)
	assert.Empty(t, job.Snapshot().Files)

	// At most one job per owner, ever.
	_, err = m.CreateJob(ctx, "user-1")
	require.ErrorIs(t, err, ErrJobExists)

	// A different owner is unaffected.
	_, err = m.CreateJob(ctx, "user-2")
	require.NoError(t, err)
}

func TestManager_DeleteJob(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the pre-deletion snapshot and removes files", func(t *testing.T) {
		m, _ := newTestManager(t, nil)
		job, err := m.CreateJob(ctx, "user-1")
		require.NoError(t, err)

		uploadCSV(t, job, "questions", "questions.csv", "q,a\n")
		want := job.Snapshot()
		path := want.Files["questions"].Path

		previous, err := m.DeleteJob(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, want.ID, previous.ID)
		assert.Equal(t, want.Files, previous.Files)
		assert.Equal(t, want.Stage, previous.Stage)
		assert.Equal(t, want.Percentage, previous.Percentage)

		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))

		_, err = m.ActiveJob(ctx, "user-1")
		require.ErrorIs(t, err, ErrNoActiveJob)
	})

	t.Run("fails when no job exists", func(t *testing.T) {
		m, _ := newTestManager(t, nil)

		_, err := m.DeleteJob(ctx, "user-1")
		require.ErrorIs(t, err, ErrNoActiveJob)
	})
}

func TestManager_StartJob(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects a job with no files", func(t *testing.T) {
		m, _ := newTestManager(t, stubRunner{run: func(context.Context, *Job) error { return nil }})
		_, err := m.CreateJob(ctx, "user-1")
		require.NoError(t, err)

		_, err = m.StartJob(ctx, "user-1")
		require.ErrorIs(t, err, ErrNoFiles)
	})

	t.Run("rejects an unknown owner", func(t *testing.T) {
		m, _ := newTestManager(t, stubRunner{run: func(context.Context, *Job) error { return nil }})

		_, err := m.StartJob(ctx, "user-1")
		require.ErrorIs(t, err, ErrNoActiveJob)
	})

	t.Run("drives the runner to completed", func(t *testing.T) {
		runner := stubRunner{run: func(ctx context.Context, job *Job) error {
			job.AppendResults(models.LogEntry{Type: models.LogLevelSuccess, Message: "record imported", Line: 1})
			return job.ReportProgress(ctx, 80)
		}}
		m, store := newTestManager(t, runner)

		job, err := m.CreateJob(ctx, "user-1")
		require.NoError(t, err)
		uploadCSV(t, job, "questions", "questions.csv", "q,a\n")

		started, err := m.StartJob(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, models.StageImporting, started.Status().Status)

		require.Eventually(t, func() bool {
			persisted, err := store.Get(ctx, "user-1")
			return err == nil && persisted.Stage == models.StageCompleted
		}, 2*time.Second, 10*time.Millisecond)

		persisted, err := store.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 100, persisted.Percentage)
		assert.Len(t, persisted.Results, 1)
	})

	t.Run("marks the job failed on an unrecoverable fault", func(t *testing.T) {
		runner := stubRunner{run: func(ctx context.Context, job *Job) error {
			return os.ErrPermission
		}}
		m, store := newTestManager(t, runner)

		job, err := m.CreateJob(ctx, "user-1")
		require.NoError(t, err)
		uploadCSV(t, job, "questions", "questions.csv", "q,a\n")

		_, err = m.StartJob(ctx, "user-1")
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			persisted, err := store.Get(ctx, "user-1")
			return err == nil && persisted.Stage == models.StageFailed
		}, 2*time.Second, 10*time.Millisecond)

		persisted, err := store.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 100, persisted.Percentage)
		require.NotEmpty(t, persisted.Results)
		assert.Equal(t, models.LogLevelError, persisted.Results[len(persisted.Results)-1].Type)
	})

	t.Run("treats deletion during the run as cancellation", func(t *testing.T) {
		release := make(chan struct{})
		outcome := make(chan error, 1)
		runner := stubRunner{run: func(ctx context.Context, job *Job) error {
			<-release
			err := job.ReportProgress(ctx, 50)
			outcome <- err
			return err
		}}
		m, store := newTestManager(t, runner)

		job, err := m.CreateJob(ctx, "user-1")
		require.NoError(t, err)
		uploadCSV(t, job, "questions", "questions.csv", "q,a\n")

		_, err = m.StartJob(ctx, "user-1")
		require.NoError(t, err)

		_, err = m.DeleteJob(ctx, "user-1")
		require.NoError(t, err)
		close(release)

		select {
		case err := <-outcome:
			require.ErrorIs(t, err, ErrNoActiveJob)
		case <-time.After(2 * time.Second):
			t.Fatal("runner did not observe the deletion")
		}

		// Cancellation never resurrects the job as failed.
		_, err = store.Get(ctx, "user-1")
		require.Error(t, err)
	})
}
