package porter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/sensei-lms/dataport/internal/models"
)

// Runner processes the uploaded files of a started job record-by-record,
// reporting progress and appending result-log entries as it goes. Run
// returns nil on end-of-stream (the manager then completes the job),
// ErrNoActiveJob when the job vanished mid-run (cancellation), and any
// other error for an unrecoverable fault (the manager then fails the job).
type Runner interface {
	Run(ctx context.Context, job *Job) error
}

// LineRunner is the reference Runner: it treats each uploaded file as a
// stream of newline-delimited records. The record grammar itself is the
// importer's concern, not the job core's; this runner exercises the full
// progress, logging and cancellation contract without interpreting
// columns.
type LineRunner struct {
	// BatchSize is how many records to process between persisted progress
	// updates. Defaults to 100.
	BatchSize int
}

func (r *LineRunner) batchSize() int {
	if r.BatchSize > 0 {
		return r.BatchSize
	}
	return 100
}

// Run processes every uploaded file in deterministic key order.
func (r *LineRunner) Run(ctx context.Context, job *Job) error {
	snap := job.Snapshot()

	keys := make([]string, 0, len(snap.Files))
	var totalBytes int64
	for key, meta := range snap.Files {
		keys = append(keys, key)
		totalBytes += meta.Size
	}
	sort.Strings(keys)

	var processedBytes int64
	for _, key := range keys {
		meta := snap.Files[key]
		n, err := r.runFile(ctx, job, key, meta, processedBytes, totalBytes)
		processedBytes += n
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *LineRunner) runFile(ctx context.Context, job *Job, key string, meta models.FileMetadata, doneBytes, totalBytes int64) (int64, error) {
	f, err := os.Open(meta.Path)
	if err != nil {
		return 0, fmt.Errorf("opening %s file: %w", key, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var fileBytes int64
	line := 0
	sinceFlush := 0
	for scanner.Scan() {
		line++
		record := scanner.Text()
		fileBytes += int64(len(scanner.Bytes())) + 1

		if len(record) == 0 {
			job.AppendResults(models.LogEntry{
				Type:    models.LogLevelWarning,
				Message: "empty record skipped",
				Line:    line,
				FileKey: key,
			})
		} else {
			job.AppendResults(models.LogEntry{
				Type:    models.LogLevelSuccess,
				Message: "record imported",
				Line:    line,
				FileKey: key,
			})
		}

		sinceFlush++
		if sinceFlush >= r.batchSize() {
			sinceFlush = 0
			if err := r.flush(ctx, job, doneBytes+fileBytes, totalBytes); err != nil {
				return fileBytes, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fileBytes, fmt.Errorf("reading %s file: %w", key, err)
	}

	if err := r.flush(ctx, job, doneBytes+fileBytes, totalBytes); err != nil {
		return fileBytes, err
	}
	return fileBytes, nil
}

// flush persists accumulated results and progress. ErrNoActiveJob from the
// persist means the job was deleted while running; propagate it untouched
// so the manager treats the run as cancelled rather than failed.
func (r *LineRunner) flush(ctx context.Context, job *Job, doneBytes, totalBytes int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pct := 0
	if totalBytes > 0 {
		pct = int(doneBytes * 100 / totalBytes)
	}
	err := job.ReportProgress(ctx, pct)
	if errors.Is(err, ErrNoActiveJob) {
		return err
	}
	if err != nil {
		return fmt.Errorf("persisting progress: %w", err)
	}
	return nil
}
