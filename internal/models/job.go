package models

import "time"

// Stage represents the coarse lifecycle phase of an import job.
type Stage string

const (
	StageSetup     Stage = "setup"
	StageImporting Stage = "importing"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// Terminal reports whether no further stage transitions are possible.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// JobStatus is the externally polled progress view of a job.
type JobStatus struct {
	Status     Stage `json:"status" msgpack:"status"`
	Percentage int   `json:"percentage" msgpack:"percentage"`
}

// Job is the durable state of one import run. Exactly one job may exist
// per owner at a time; the jobstore enforces that at the storage level.
type Job struct {
	ID         string                  `msgpack:"id"`
	Owner      string                  `msgpack:"owner"`
	Stage      Stage                   `msgpack:"stage"`
	Percentage int                     `msgpack:"percentage"`
	Files      map[string]FileMetadata `msgpack:"files"`
	Results    []LogEntry              `msgpack:"results"`
	CreatedAt  time.Time               `msgpack:"created_at"`
	UpdatedAt  time.Time               `msgpack:"updated_at"`
}

// NewJob creates a job in the setup stage with an empty file registry.
func NewJob(id, owner string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		Owner:     owner,
		Stage:     StageSetup,
		Files:     make(map[string]FileMetadata),
		Results:   make([]LogEntry, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Status returns the polled stage/percentage pair.
func (j *Job) Status() JobStatus {
	return JobStatus{Status: j.Stage, Percentage: j.Percentage}
}

// Clone returns a deep copy, safe to hand out as a snapshot.
func (j *Job) Clone() *Job {
	c := *j
	c.Files = make(map[string]FileMetadata, len(j.Files))
	for k, v := range j.Files {
		c.Files[k] = v
	}
	c.Results = make([]LogEntry, len(j.Results))
	copy(c.Results, j.Results)
	return &c
}
