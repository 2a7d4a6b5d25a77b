// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sensei-lms/dataport/internal/filestore"
	"github.com/sensei-lms/dataport/internal/porter"
)

// Stable wire codes. These are part of the REST contract and must not
// change between releases.
const (
	CodeNotLoggedIn        = "rest_not_logged_in"
	CodeForbidden          = "rest_forbidden"
	CodeNoActiveJob        = "rest_no_active_job"
	CodeUploadNoData       = "rest_upload_no_data"
	CodeUnexpectedFileType = "sensei_data_port_unexpected_file_type"
	CodeUnknownFileKey     = "sensei_data_port_unknown_file_key"
	CodeFileNotFound       = "sensei_data_port_job_file_not_found"
	CodeJobStarted         = "sensei_data_port_job_started"
	CodeNoFiles            = "sensei_data_port_job_no_files"
	CodeInternal           = "internal_error"
)

// APIError represents a structured API error response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// domainError translates porter/filestore errors into wire errors. Every
// domain error crossing the REST boundary goes through here; anything
// unrecognized is an internal fault and never leaks its details.
func domainError(err error) *APIError {
	switch {
	case errors.Is(err, porter.ErrNoActiveJob):
		return newAPIError(http.StatusNotFound, CodeNoActiveJob, "No import job is active for this user.")
	case errors.Is(err, filestore.ErrUnexpectedFileType):
		return newAPIError(http.StatusBadRequest, CodeUnexpectedFileType, "The uploaded file type is not supported for this slot.")
	case errors.Is(err, porter.ErrUnknownFileKey):
		// The controller offered an upload slot the job does not
		// recognize: a server misconfiguration, never a client mistake.
		return newAPIError(http.StatusInternalServerError, CodeUnknownFileKey, "The file key is not recognized by the import job.")
	case errors.Is(err, porter.ErrFileNotFound):
		return newAPIError(http.StatusNotFound, CodeFileNotFound, "No file has been uploaded for this key.")
	case errors.Is(err, porter.ErrJobStarted):
		return newAPIError(http.StatusBadRequest, CodeJobStarted, "The import job has already been started.")
	case errors.Is(err, porter.ErrNoFiles):
		return newAPIError(http.StatusBadRequest, CodeNoFiles, "Upload at least one file before starting the import.")
	default:
		return newAPIError(http.StatusInternalServerError, CodeInternal, "An unexpected error occurred.")
	}
}

// ErrorHandler is the Echo HTTP error handler. Every error leaving a
// handler becomes a {code, message} JSON body with a matching status.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var echoErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &echoErr):
		apiErr = &APIError{
			Status:  echoErr.Code,
			Code:    "http_error",
			Message: fmt.Sprintf("%v", echoErr.Message),
		}
	default:
		apiErr = newAPIError(http.StatusInternalServerError, CodeInternal, "An unexpected error occurred.")
	}

	if jsonErr := c.JSON(apiErr.Status, apiErr); jsonErr != nil {
		c.Logger().Error(jsonErr)
	}
}
