// routes.go - Route registration
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/sensei-lms/dataport/internal/auth"
	"github.com/sensei-lms/dataport/internal/porter"
)

// APIBasePath is the private namespace the import API lives under. It is
// not meant for third-party consumption.
const APIBasePath = "/sensei-internal/v1"

// Dependencies holds all handler dependencies.
type Dependencies struct {
	Jobs    *porter.Manager
	Auth    auth.Provider
	Version string
}

// RegisterRoutes registers all API routes with the Echo instance.
func RegisterRoutes(e *echo.Echo, deps *Dependencies) {
	e.HTTPErrorHandler = ErrorHandler

	health := NewHealthHandler(deps.Version)
	e.GET("/health", health.HandleHealth)

	h := NewImportHandler(deps.Jobs)
	g := e.Group(APIBasePath, RequireAdmin(deps.Auth))
	g.GET("/import", h.HandleGetJob)
	g.POST("/import", h.HandleCreateJob)
	g.DELETE("/import", h.HandleDeleteJob)
	g.POST("/import/start", h.HandleStartJob)
	g.GET("/import/logs", h.HandleGetLogs)
	g.POST("/import/file/:file_key", h.HandleUploadFile)
	g.DELETE("/import/file/:file_key", h.HandleDeleteFile)
}
