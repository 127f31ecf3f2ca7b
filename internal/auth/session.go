package auth

import (
	"context"
	"sync"
	"time"
)

// Identity is what the identity provider asserts about a signed-in user.
type Identity struct {
	UserID      string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Session is one signed-in client. Work started on behalf of the session
// should use Context so that it stops when the session is closed or expires.
type Session struct {
	Token     string
	Identity  Identity
	CreatedAt time.Time
	ExpiresAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewSession opens a session. A zero expiresAt never expires; otherwise the
// session context ends at expiresAt.
func NewSession(token string, identity Identity, createdAt, expiresAt time.Time) *Session {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if expiresAt.IsZero() {
		ctx, cancel = context.WithCancel(context.Background())
	} else {
		ctx, cancel = context.WithDeadline(context.Background(), expiresAt)
	}
	return &Session{
		Token:     token,
		Identity:  identity,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// UserID is the authenticated user's id.
func (s *Session) UserID() string { return s.Identity.UserID }

// Context is cancelled when the session is closed or expires.
func (s *Session) Context() context.Context { return s.ctx }

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Active reports whether the session is still open and unexpired.
func (s *Session) Active() bool { return s.ctx.Err() == nil }

// Close ends the session. It reports whether this call closed it.
func (s *Session) Close() bool {
	closed := false
	s.once.Do(func() {
		s.cancel()
		closed = true
	})
	return closed
}
