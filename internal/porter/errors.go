package porter

import "errors"

// Domain errors. The REST layer maps these to stable wire codes; nothing
// below the API boundary knows about HTTP.
var (
	// ErrNoActiveJob: the owner has no active import job.
	ErrNoActiveJob = errors.New("no active import job")
	// ErrJobExists: the owner already has an active import job.
	ErrJobExists = errors.New("an import job already exists for this user")
	// ErrUnknownFileKey: the file key is not part of the job's recognized
	// key set. This is a server-side integrity fault, not a client error.
	ErrUnknownFileKey = errors.New("unknown file key")
	// ErrFileNotFound: no file has been uploaded for the key.
	ErrFileNotFound = errors.New("no file uploaded for this key")
	// ErrJobStarted: the job has left setup, so its configuration is frozen.
	ErrJobStarted = errors.New("the import job has already been started")
	// ErrNoFiles: the job cannot start without at least one uploaded file.
	ErrNoFiles = errors.New("the import job has no uploaded files")
)
