// Package auth resolves request credentials to users and their capabilities.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sensei-lms/dataport/internal/config"
)

// ErrUnauthenticated is returned when a request carries no valid credentials.
var ErrUnauthenticated = errors.New("request is not authenticated")

// User is an authenticated identity. Admin gates access to the import API.
type User struct {
	ID    string
	Admin bool
}

// Provider authenticates an incoming request. Implementations other than
// the built-in token provider (a session system, a reverse-proxy header
// scheme) can be injected at startup.
type Provider interface {
	Authenticate(r *http.Request) (*User, error)
}

// TokenProvider authenticates requests by bearer token against a static
// token table from configuration.
type TokenProvider struct {
	users map[string]User
}

// NewTokenProvider builds a provider from the configured token table.
func NewTokenProvider(tokens map[string]config.TokenUser) *TokenProvider {
	users := make(map[string]User, len(tokens))
	for token, tu := range tokens {
		users[token] = User{ID: tu.UserID, Admin: tu.Admin}
	}
	return &TokenProvider{users: users}
}

// Authenticate resolves the Authorization bearer token to a user.
func (p *TokenProvider) Authenticate(r *http.Request) (*User, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, ErrUnauthenticated
	}

	user, ok := p.users[token]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return &user, nil
}
