package porter

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/sensei-lms/dataport/internal/filestore"
	"github.com/sensei-lms/dataport/internal/jobstore"
	"github.com/sensei-lms/dataport/internal/models"
)

// Manager mediates every job lifecycle operation and enforces the
// one-active-job-per-owner invariant. It is constructed once at startup
// and injected into the REST layer; all of its state lives in the stores.
type Manager struct {
	store  jobstore.Store
	files  *filestore.Store
	keys   map[string]filestore.Rule
	runner Runner
}

// NewManager builds a Manager over the given stores. keys is the
// recognized file-key set with per-key upload allow-lists; runner drives
// record processing once a job is started.
func NewManager(store jobstore.Store, files *filestore.Store, keys map[string]filestore.Rule, runner Runner) *Manager {
	return &Manager{store: store, files: files, keys: keys, runner: runner}
}

// ActiveJob returns the owner's active job, or ErrNoActiveJob.
func (m *Manager) ActiveJob(ctx context.Context, owner string) (*Job, error) {
	data, err := m.store.Get(ctx, owner)
	if errors.Is(err, jobstore.ErrNotFound) {
		return nil, ErrNoActiveJob
	}
	if err != nil {
		return nil, err
	}
	return newJob(data, m.store, m.files, m.keys), nil
}

// CreateJob allocates a fresh job in the setup stage for the owner.
// Creation is guarded by the store's atomic check-and-set: when two
// requests race, exactly one gets the job and the other gets ErrJobExists.
func (m *Manager) CreateJob(ctx context.Context, owner string) (*Job, error) {
	data := models.NewJob(uuid.New().String(), owner)
	err := m.store.Create(ctx, data)
	if errors.Is(err, jobstore.ErrExists) {
		return nil, ErrJobExists
	}
	if err != nil {
		return nil, err
	}
	return newJob(data, m.store, m.files, m.keys), nil
}

// DeleteJob removes the owner's job and all of its stored files,
// returning the job's state as it was immediately before deletion.
// Removing the registry row first means an in-flight runner observes the
// deletion on its next persisted progress update and aborts cleanly.
func (m *Manager) DeleteJob(ctx context.Context, owner string) (*models.Job, error) {
	data, err := m.store.Get(ctx, owner)
	if errors.Is(err, jobstore.ErrNotFound) {
		return nil, ErrNoActiveJob
	}
	if err != nil {
		return nil, err
	}

	if err := m.store.Delete(ctx, owner); err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			return nil, ErrNoActiveJob
		}
		return nil, err
	}

	if err := m.files.RemoveJob(data.ID); err != nil {
		return nil, fmt.Errorf("removing job files: %w", err)
	}
	return data, nil
}

// StartJob transitions the owner's job into importing and launches the
// runner in the background. The runner persists after every batch, so a
// restart or an external scheduler can resume from the last durable state.
func (m *Manager) StartJob(ctx context.Context, owner string) (*Job, error) {
	job, err := m.ActiveJob(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := job.Start(ctx); err != nil {
		return nil, err
	}

	go m.runJob(job)

	return job, nil
}

// runJob drives the runner to a terminal stage. A runner that reports
// ErrNoActiveJob stopped because the job was deleted mid-run: that is
// cancellation, not failure, and there is nothing left to persist.
func (m *Manager) runJob(job *Job) {
	ctx := context.Background()
	id := job.ID()

	err := m.runner.Run(ctx, job)
	switch {
	case errors.Is(err, ErrNoActiveJob):
		log.Printf("[import %.8s] cancelled: job deleted during processing", id)
	case err != nil:
		log.Printf("[import %.8s] failed: %v", id, err)
		if ferr := job.Fail(ctx, err.Error()); ferr != nil && !errors.Is(ferr, ErrNoActiveJob) {
			log.Printf("[import %.8s] could not record failure: %v", id, ferr)
		}
	default:
		if cerr := job.Complete(ctx); cerr != nil && !errors.Is(cerr, ErrNoActiveJob) {
			log.Printf("[import %.8s] could not record completion: %v", id, cerr)
		} else {
			log.Printf("[import %.8s] completed", id)
		}
	}
}
