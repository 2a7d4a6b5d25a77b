// Package jobstore provides durable persistence for import jobs, keyed by
// the owning user. The storage backend enforces the one-job-per-owner
// invariant: creating a second job for an owner fails atomically.
package jobstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sensei-lms/dataport/internal/models"
)

var (
	// ErrNotFound is returned when no job exists for the owner.
	ErrNotFound = errors.New("no job found for owner")
	// ErrExists is returned by Create when the owner already has a job.
	ErrExists = errors.New("a job already exists for owner")
)

// Store is the persistence capability the job manager is built on.
// All operations are keyed by the job's owner.
type Store interface {
	// Get loads the job for the owner, or ErrNotFound.
	Get(ctx context.Context, owner string) (*models.Job, error)
	// Create persists a new job. Fails with ErrExists if the owner already
	// has one; the check and the write are a single atomic operation.
	Create(ctx context.Context, job *models.Job) error
	// Update re-persists an existing job. Fails with ErrNotFound if the
	// job has been deleted since it was loaded.
	Update(ctx context.Context, job *models.Job) error
	// Delete removes the owner's job, or ErrNotFound.
	Delete(ctx context.Context, owner string) error
}

// snapshotVersion is the current persisted-format version. Snapshots are
// wrapped in a versioned envelope so records written by a prior schema can
// still be loaded after upgrades.
const snapshotVersion = 1

type snapshotEnvelope struct {
	Version int         `msgpack:"version"`
	Job     *models.Job `msgpack:"job"`
}

func encodeSnapshot(job *models.Job) ([]byte, error) {
	data, err := msgpack.Marshal(&snapshotEnvelope{Version: snapshotVersion, Job: job})
	if err != nil {
		return nil, fmt.Errorf("encoding job snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*models.Job, error) {
	var env snapshotEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding job snapshot: %w", err)
	}
	if env.Version < 1 || env.Version > snapshotVersion {
		return nil, fmt.Errorf("unsupported job snapshot version %d", env.Version)
	}
	if env.Job == nil {
		return nil, errors.New("job snapshot is empty")
	}
	if env.Job.Files == nil {
		env.Job.Files = make(map[string]models.FileMetadata)
	}
	if env.Job.Results == nil {
		env.Job.Results = make([]models.LogEntry, 0)
	}
	return env.Job, nil
}
