// memory_jobstore.go - In-memory jobstore.Store for tests
package testutil

import (
	"context"
	"sync"

	"github.com/sensei-lms/dataport/internal/jobstore"
	"github.com/sensei-lms/dataport/internal/models"
)

// MemoryJobStore implements jobstore.Store in memory with the same
// semantics as the gorm store: create is an atomic check-and-set per
// owner, update of a deleted job reports jobstore.ErrNotFound. Errors can
// be injected per operation to exercise failure paths.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.Job

	FailGet    error
	FailCreate error
	FailUpdate error
	FailDelete error
}

// NewMemoryJobStore creates an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*models.Job)}
}

// Get returns a deep copy of the owner's job.
func (s *MemoryJobStore) Get(ctx context.Context, owner string) (*models.Job, error) {
	if s.FailGet != nil {
		return nil, s.FailGet
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[owner]
	if !ok {
		return nil, jobstore.ErrNotFound
	}
	return job.Clone(), nil
}

// Create registers the job unless the owner already has one.
func (s *MemoryJobStore) Create(ctx context.Context, job *models.Job) error {
	if s.FailCreate != nil {
		return s.FailCreate
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.Owner]; ok {
		return jobstore.ErrExists
	}
	s.jobs[job.Owner] = job.Clone()
	return nil
}

// Update replaces the stored job if it still exists.
func (s *MemoryJobStore) Update(ctx context.Context, job *models.Job) error {
	if s.FailUpdate != nil {
		return s.FailUpdate
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.jobs[job.Owner]
	if !ok || existing.ID != job.ID {
		return jobstore.ErrNotFound
	}
	s.jobs[job.Owner] = job.Clone()
	return nil
}

// Delete removes the owner's job.
func (s *MemoryJobStore) Delete(ctx context.Context, owner string) error {
	if s.FailDelete != nil {
		return s.FailDelete
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[owner]; !ok {
		return jobstore.ErrNotFound
	}
	delete(s.jobs, owner)
	return nil
}
