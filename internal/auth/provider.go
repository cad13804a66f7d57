// Package auth supplies the current user identity to the chat layer. The
// chat packages never read ambient auth state themselves; they take the
// user id from a Provider at the call boundary.
package auth

import (
	"errors"
	"os"
	"strings"
)

// ErrNoUser indicates no authenticated user is available.
var ErrNoUser = errors.New("no authenticated user")

// Provider yields the current user's identifier.
type Provider interface {
	CurrentUserID() (string, error)
}

// Static is a Provider with a fixed user id, set from a --user flag or by
// the server per request.
type Static struct {
	UserID string
}

func (s Static) CurrentUserID() (string, error) {
	if strings.TrimSpace(s.UserID) == "" {
		return "", ErrNoUser
	}
	return s.UserID, nil
}

// envVar is consulted by FromEnv when no explicit user id is given.
const envVar = "UNICHAT_USER"

// FromEnv resolves the user id from the explicit value if set, falling
// back to the UNICHAT_USER environment variable.
func FromEnv(explicit string) Provider {
	if strings.TrimSpace(explicit) != "" {
		return Static{UserID: explicit}
	}
	return Static{UserID: strings.TrimSpace(os.Getenv(envVar))}
}
