package porter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sensei-lms/dataport/internal/filestore"
	"github.com/sensei-lms/dataport/internal/jobstore"
	"github.com/sensei-lms/dataport/internal/models"
)

// Job is one import run: the durable record plus the stores it persists
// through. All mutations re-persist the record before returning, so the
// job survives the request that mutated it.
//
// Stage machine: setup -> importing -> completed | failed. File mutation
// is only permitted in setup; completed and failed are terminal.
type Job struct {
	mu    sync.Mutex
	data  *models.Job
	store jobstore.Store
	files *filestore.Store
	keys  map[string]filestore.Rule
}

func newJob(data *models.Job, store jobstore.Store, files *filestore.Store, keys map[string]filestore.Rule) *Job {
	return &Job{data: data, store: store, files: files, keys: keys}
}

// ID returns the job's stable identifier.
func (j *Job) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.data.ID
}

// Owner returns the owning user's identifier.
func (j *Job) Owner() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.data.Owner
}

// Status returns the polled stage/percentage view.
func (j *Job) Status() models.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.data.Status()
}

// Snapshot returns a deep copy of the job record.
func (j *Job) Snapshot() *models.Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.data.Clone()
}

// Results returns a copy of the result log.
func (j *Job) Results() []models.LogEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.LogEntry, len(j.data.Results))
	copy(out, j.data.Results)
	return out
}

// SaveFile validates and stores an upload for the file key, then
// re-persists the job. Uploading to an occupied key overwrites the
// previous file and releases its stored bytes.
func (j *Job) SaveFile(ctx context.Context, fileKey, declaredName, declaredType string, r io.Reader) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.data.Stage != models.StageSetup {
		return ErrJobStarted
	}

	rule, ok := j.keys[fileKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFileKey, fileKey)
	}

	meta, err := j.files.Save(j.data.ID, fileKey, declaredName, declaredType, r, rule)
	if err != nil {
		return err
	}

	j.data.Files[fileKey] = *meta
	return j.persistLocked(ctx)
}

// DeleteFile removes the stored file for the key and re-persists the job.
func (j *Job) DeleteFile(ctx context.Context, fileKey string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.data.Stage != models.StageSetup {
		return ErrJobStarted
	}

	if _, ok := j.data.Files[fileKey]; !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, fileKey)
	}

	if _, err := j.files.Remove(j.data.ID, fileKey); err != nil {
		return err
	}

	delete(j.data.Files, fileKey)
	return j.persistLocked(ctx)
}

// Start transitions setup -> importing, freezing the file registry.
// At least one uploaded file is required.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.data.Stage != models.StageSetup {
		return ErrJobStarted
	}
	if len(j.data.Files) == 0 {
		return ErrNoFiles
	}

	j.data.Stage = models.StageImporting
	return j.persistLocked(ctx)
}

// ReportProgress records and persists record-processing progress.
// Percentage is monotone within a run and capped below 100 while
// importing; only a terminal transition reaches 100. A persist that
// finds the job gone returns ErrNoActiveJob, which callers treat as
// cancellation.
func (j *Job) ReportProgress(ctx context.Context, percentage int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.data.Stage != models.StageImporting {
		return ErrJobStarted
	}

	if percentage > 99 {
		percentage = 99
	}
	if percentage > j.data.Percentage {
		j.data.Percentage = percentage
	}
	return j.persistLocked(ctx)
}

// AppendResults appends per-record outcome entries to the result log.
// Entries are persisted with the next progress update or terminal
// transition, keeping the per-record write amplification bounded.
func (j *Job) AppendResults(entries ...models.LogEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.data.Results = append(j.data.Results, entries...)
}

// Complete transitions importing -> completed. Per-record error entries in
// the result log are still a valid completed outcome.
func (j *Job) Complete(ctx context.Context) error {
	return j.finish(ctx, models.StageCompleted, "")
}

// Fail transitions importing -> failed after an unrecoverable fault.
// Percentage is forced to 100 so pollers can tell "done, unsuccessfully"
// from "still running".
func (j *Job) Fail(ctx context.Context, reason string) error {
	return j.finish(ctx, models.StageFailed, reason)
}

func (j *Job) finish(ctx context.Context, stage models.Stage, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.data.Stage != models.StageImporting {
		return ErrJobStarted
	}

	if reason != "" {
		j.data.Results = append(j.data.Results, models.LogEntry{
			Type:    models.LogLevelError,
			Message: reason,
		})
	}
	j.data.Stage = stage
	j.data.Percentage = 100
	return j.persistLocked(ctx)
}

func (j *Job) persistLocked(ctx context.Context) error {
	j.data.UpdatedAt = time.Now().UTC()
	err := j.store.Update(ctx, j.data)
	if errors.Is(err, jobstore.ErrNotFound) {
		return ErrNoActiveJob
	}
	return err
}
