package jobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sensei-lms/dataport/internal/models"
)

// jobRow is the gorm model backing job persistence. Owner is the primary
// key, so inserting a second job for the same owner fails at the database
// level: that conflict is the atomic check-and-set guarding job creation.
type jobRow struct {
	Owner     string `gorm:"primaryKey;size:128"`
	JobID     string `gorm:"size:36;not null;index"`
	Stage     string `gorm:"size:16;not null"`
	Snapshot  []byte `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (jobRow) TableName() string {
	return "import_jobs"
}

// GormStore implements Store on a gorm-managed SQLite database.
type GormStore struct {
	db *gorm.DB
}

// Open opens (creating if needed) the job database at path.
func Open(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening job database: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps an existing gorm DB, migrating the job table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&jobRow{}); err != nil {
		return nil, fmt.Errorf("migrating job table: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Get loads the job for the owner.
func (s *GormStore) Get(ctx context.Context, owner string) (*models.Job, error) {
	var row jobRow
	err := s.db.WithContext(ctx).First(&row, "owner = ?", owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading job for %s: %w", owner, err)
	}
	return decodeSnapshot(row.Snapshot)
}

// Create persists a new job. The primary-key conflict on owner makes two
// concurrent creations for the same owner resolve to exactly one winner.
func (s *GormStore) Create(ctx context.Context, job *models.Job) error {
	snapshot, err := encodeSnapshot(job)
	if err != nil {
		return err
	}

	row := jobRow{
		Owner:    job.Owner,
		JobID:    job.ID,
		Stage:    string(job.Stage),
		Snapshot: snapshot,
	}
	err = s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("creating job for %s: %w", job.Owner, err)
	}
	return nil
}

// Update re-persists the job. Zero matched rows means the job was deleted
// out from under the caller; that surfaces as ErrNotFound so in-flight
// processing can treat it as cancellation.
func (s *GormStore) Update(ctx context.Context, job *models.Job) error {
	snapshot, err := encodeSnapshot(job)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Model(&jobRow{}).
		Where("owner = ? AND job_id = ?", job.Owner, job.ID).
		Updates(map[string]interface{}{
			"stage":    string(job.Stage),
			"snapshot": snapshot,
		})
	if res.Error != nil {
		return fmt.Errorf("updating job for %s: %w", job.Owner, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the owner's job row.
func (s *GormStore) Delete(ctx context.Context, owner string) error {
	res := s.db.WithContext(ctx).Delete(&jobRow{}, "owner = ?", owner)
	if res.Error != nil {
		return fmt.Errorf("deleting job for %s: %w", owner, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
