// handlers_import.go - Import job REST handlers
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sensei-lms/dataport/internal/models"
	"github.com/sensei-lms/dataport/internal/porter"
)

// ImportHandler translates the import REST surface into job manager
// operations. All handlers run behind RequireAdmin.
type ImportHandler struct {
	jobs *porter.Manager
}

// NewImportHandler creates a new import handler instance.
func NewImportHandler(jobs *porter.Manager) *ImportHandler {
	return &ImportHandler{jobs: jobs}
}

// jobResponse is the wire shape of a job:
// {id, status: {status, percentage}, files: {key: {name, size}}}.
type jobResponse struct {
	ID     string                         `json:"id"`
	Status models.JobStatus               `json:"status"`
	Files  map[string]models.FileMetadata `json:"files"`
}

type deleteResponse struct {
	Deleted  bool        `json:"deleted"`
	Previous jobResponse `json:"previous"`
}

type logsResponse struct {
	Items []models.LogEntry `json:"items"`
	Total int               `json:"total"`
}

func newJobResponse(snap *models.Job) jobResponse {
	files := snap.Files
	if files == nil {
		files = make(map[string]models.FileMetadata)
	}
	return jobResponse{
		ID:     snap.ID,
		Status: snap.Status(),
		Files:  files,
	}
}

// HandleGetJob returns the requester's active job.
func (h *ImportHandler) HandleGetJob(c echo.Context) error {
	user := currentUser(c)

	job, err := h.jobs.ActiveJob(c.Request().Context(), user.ID)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, newJobResponse(job.Snapshot()))
}

// HandleCreateJob creates a job for the requester, or returns the existing
// one. Creation is idempotent by design: a second POST while a job is
// active returns that job rather than erroring, still with 201.
func (h *ImportHandler) HandleCreateJob(c echo.Context) error {
	user := currentUser(c)
	ctx := c.Request().Context()

	job, err := h.jobs.CreateJob(ctx, user.ID)
	if errors.Is(err, porter.ErrJobExists) {
		job, err = h.jobs.ActiveJob(ctx, user.ID)
	}
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusCreated, newJobResponse(job.Snapshot()))
}

// HandleDeleteJob deletes the requester's active job, returning the last
// known state as "previous".
func (h *ImportHandler) HandleDeleteJob(c echo.Context) error {
	user := currentUser(c)

	previous, err := h.jobs.DeleteJob(c.Request().Context(), user.ID)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, deleteResponse{
		Deleted:  true,
		Previous: newJobResponse(previous),
	})
}

// HandleUploadFile stores the multipart "file" part under the file key.
func (h *ImportHandler) HandleUploadFile(c echo.Context) error {
	user := currentUser(c)
	ctx := c.Request().Context()
	fileKey := c.Param("file_key")

	job, err := h.jobs.ActiveJob(ctx, user.ID)
	if err != nil {
		return domainError(err)
	}

	header, err := c.FormFile("file")
	if err != nil {
		return newAPIError(http.StatusBadRequest, CodeUploadNoData, "No file was provided for upload.")
	}

	src, err := header.Open()
	if err != nil {
		return domainError(err)
	}
	defer src.Close()

	declaredType := header.Header.Get(echo.HeaderContentType)
	if err := job.SaveFile(ctx, fileKey, header.Filename, declaredType, src); err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, newJobResponse(job.Snapshot()))
}

// HandleDeleteFile removes the stored file for the file key.
func (h *ImportHandler) HandleDeleteFile(c echo.Context) error {
	user := currentUser(c)
	ctx := c.Request().Context()
	fileKey := c.Param("file_key")

	job, err := h.jobs.ActiveJob(ctx, user.ID)
	if err != nil {
		return domainError(err)
	}

	if err := job.DeleteFile(ctx, fileKey); err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, newJobResponse(job.Snapshot()))
}

// HandleStartJob freezes the job's files and begins processing.
func (h *ImportHandler) HandleStartJob(c echo.Context) error {
	user := currentUser(c)

	job, err := h.jobs.StartJob(c.Request().Context(), user.ID)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, newJobResponse(job.Snapshot()))
}

// HandleGetLogs returns the job's ordered result log.
func (h *ImportHandler) HandleGetLogs(c echo.Context) error {
	user := currentUser(c)

	job, err := h.jobs.ActiveJob(c.Request().Context(), user.ID)
	if err != nil {
		return domainError(err)
	}

	items := job.Results()
	return c.JSON(http.StatusOK, logsResponse{Items: items, Total: len(items)})
}
