package models

// FileMetadata describes one uploaded file attached to a job file key.
// Path is the job-scoped location on disk and is never exposed over the
// REST API; Name is the client-declared name, kept for display only.
type FileMetadata struct {
	Name string `json:"name" msgpack:"name"`
	Path string `json:"-" msgpack:"path"`
	Size int64  `json:"size" msgpack:"size"`
}

// LogLevel is the severity of a single result-log entry.
type LogLevel string

const (
	LogLevelSuccess LogLevel = "success"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// LogEntry is one per-record outcome produced while a job is processing.
// The result log is append-only once processing starts.
type LogEntry struct {
	Type    LogLevel `json:"type" msgpack:"type"`
	Message string   `json:"message" msgpack:"message"`
	Line    int      `json:"line,omitempty" msgpack:"line"`
	FileKey string   `json:"file_key,omitempty" msgpack:"file_key"`
}
