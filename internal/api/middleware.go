// middleware.go - Authentication and authorization middleware
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sensei-lms/dataport/internal/auth"
)

const userContextKey = "dataport.user"

// RequireAdmin authenticates the request through the provider and rejects
// anyone without the administrative capability. Unauthenticated requests
// get 401; authenticated non-admins get 403.
func RequireAdmin(provider auth.Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := provider.Authenticate(c.Request())
			if err != nil {
				return newAPIError(http.StatusUnauthorized, CodeNotLoggedIn, "You are not currently logged in.")
			}
			if !user.Admin {
				return newAPIError(http.StatusForbidden, CodeForbidden, "You are not allowed to manage imports.")
			}

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// currentUser returns the authenticated user set by RequireAdmin.
func currentUser(c echo.Context) *auth.User {
	user, _ := c.Get(userContextKey).(*auth.User)
	return user
}
