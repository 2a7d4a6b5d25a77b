// runner_test.go - Tests for the reference line runner
package porter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensei-lms/dataport/internal/models"
)

func TestLineRunner_Run(t *testing.T) {
	ctx := context.Background()
	runner := &LineRunner{BatchSize: 2}

	t.Run("processes every file and reports progress", func(t *testing.T) {
		m, store := newTestManager(t, runner)
		job, err := m.CreateJob(ctx, "user-1")
		require.NoError(t, err)

		uploadCSV(t, job, "questions", "questions.csv", "q,a\n1,2\n3,4\n")
		uploadCSV(t, job, "courses", "courses.csv", "course\ngo-101\n")
		require.NoError(t, job.Start(ctx))

		require.NoError(t, runner.Run(ctx, job))

		results := job.Results()
		assert.Len(t, results, 5)
		for _, entry := range results {
			assert.Equal(t, models.LogLevelSuccess, entry.Type)
		}

		// Everything is persisted; percentage has reached the importing cap.
		persisted, err := store.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, models.StageImporting, persisted.Stage)
		assert.Equal(t, 99, persisted.Percentage)
		assert.Len(t, persisted.Results, 5)
	})

	t.Run("files are processed in key order", func(t *testing.T) {
		m, _ := newTestManager(t, runner)
		job, err := m.CreateJob(ctx, "user-1")
		require.NoError(t, err)

		uploadCSV(t, job, "questions", "questions.csv", "q\n")
		uploadCSV(t, job, "courses", "courses.csv", "c\n")
		require.NoError(t, job.Start(ctx))

		require.NoError(t, runner.Run(ctx, job))

		results := job.Results()
		require.Len(t, results, 2)
		assert.Equal(t, "courses", results[0].FileKey)
		assert.Equal(t, "questions", results[1].FileKey)
	})

	t.Run("flags empty records as warnings", func(t *testing.T) {
		m, _ := newTestManager(t, runner)
		job, err := m.CreateJob(ctx, "user-1")
		require.NoError(t, err)

		uploadCSV(t, job, "questions", "questions.csv", "q,a\n\n1,2\n")
		require.NoError(t, job.Start(ctx))

		require.NoError(t, runner.Run(ctx, job))

		results := job.Results()
		require.Len(t, results, 3)
		assert.Equal(t, models.LogLevelWarning, results[1].Type)
		assert.Equal(t, 2, results[1].Line)
	})

	t.Run("aborts as cancellation when the job is deleted mid-run", func(t *testing.T) {
		m, store := newTestManager(t, &LineRunner{BatchSize: 1})
		job, err := m.CreateJob(ctx, "user-1")
		require.NoError(t, err)

		uploadCSV(t, job, "questions", "questions.csv", "q,a\n1,2\n")
		require.NoError(t, job.Start(ctx))

		// Simulate a concurrent DELETE /import landing before the first
		// persisted progress update.
		require.NoError(t, store.Delete(ctx, "user-1"))

		err = (&LineRunner{BatchSize: 1}).Run(ctx, job)
		require.ErrorIs(t, err, ErrNoActiveJob)
	})

	t.Run("fails when an uploaded file cannot be read", func(t *testing.T) {
		m, _ := newTestManager(t, runner)
		job, err := m.CreateJob(ctx, "user-1")
		require.NoError(t, err)

		uploadCSV(t, job, "questions", "questions.csv", "q,a\n")
		require.NoError(t, job.Start(ctx))

		// Corrupt the stored path the way a lost disk would.
		job.mu.Lock()
		meta := job.data.Files["questions"]
		meta.Path = meta.Path + ".missing"
		job.data.Files["questions"] = meta
		job.mu.Unlock()

		err = runner.Run(ctx, job)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrNoActiveJob)
	})
}
