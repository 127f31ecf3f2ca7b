// Package authtest opens sessions for tests that bypass sign-in.
package authtest

import (
	"time"

	"dm-service/internal/auth"
)

// NewSession returns an open, non-expiring session for identity that no
// provider knows about. Its token is "test-" followed by the user id.
func NewSession(identity auth.Identity) *auth.Session {
	return auth.NewSession("test-"+identity.UserID, identity, time.Now(), time.Time{})
}
