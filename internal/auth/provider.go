package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dm-service/internal/apperr"
)

// Verifier checks an identity-provider ID token and reports when it expires.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (Identity, time.Time, error)
}

// Claims carried by ID tokens. The subject is the user id.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 ID tokens signed with a shared secret.
type JWTVerifier struct {
	secret  []byte
	options []jwt.ParserOption
}

// NewJWTVerifier builds a verifier. Empty issuer or audience are not checked.
func NewJWTVerifier(secret, issuer, audience string) *JWTVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWTVerifier{secret: []byte(secret), options: opts}
}

func (v *JWTVerifier) Verify(_ context.Context, idToken string) (Identity, time.Time, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(idToken, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.options...)
	if err != nil {
		reason := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "token expired"
		}
		return Identity{}, time.Time{}, &apperr.AuthFailedError{Reason: reason, Err: err}
	}
	if claims.Subject == "" {
		return Identity{}, time.Time{}, &apperr.AuthFailedError{Reason: "token has no subject"}
	}
	if claims.Email == "" {
		return Identity{}, time.Time{}, &apperr.AuthFailedError{Reason: "token has no email"}
	}
	identity := Identity{UserID: claims.Subject, Email: claims.Email, DisplayName: claims.Name}
	return identity, claims.ExpiresAt.Time, nil
}

// StateListener is called once per sign-in and once per sign-out. identity is
// nil on sign-out.
type StateListener func(userID string, identity *Identity)

// Provider owns sign-in sessions. A session lasts until sign-out or until its
// ID token expires, whichever comes first.
type Provider struct {
	verifier Verifier
	logger   zerolog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	sessions  map[string]*Session
	nextID    int
	listeners map[int]StateListener
}

// NewProvider creates a Provider. With a nil verifier every sign-in fails
// with ErrAuthNotInitialized.
func NewProvider(verifier Verifier, logger zerolog.Logger) *Provider {
	return &Provider{
		verifier:  verifier,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*Session),
		listeners: make(map[int]StateListener),
	}
}

// SignIn verifies idToken and opens a session.
func (p *Provider) SignIn(ctx context.Context, idToken string) (*Session, error) {
	if p.verifier == nil {
		return nil, apperr.ErrAuthNotInitialized
	}
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, &apperr.AuthFailedError{Reason: "missing id token"}
	}

	identity, expiresAt, err := p.verifier.Verify(ctx, idToken)
	if err != nil {
		p.logger.Warn().Err(err).Msg("sign-in rejected")
		return nil, err
	}

	session := NewSession(uuid.NewString(), identity, p.now(), expiresAt)
	p.mu.Lock()
	p.sessions[session.Token] = session
	p.mu.Unlock()

	p.logger.Info().Str("user_id", identity.UserID).Time("expires_at", expiresAt).Msg("signed in")
	p.notify(identity.UserID, &identity)

	// an expired session leaves the map on its own
	context.AfterFunc(session.Context(), func() { p.expire(session) })
	return session, nil
}

// expire evicts session once its context has ended. Sessions already removed
// by SignOut are left alone so listeners hear exactly one sign-out.
func (p *Provider) expire(session *Session) {
	p.mu.Lock()
	current, ok := p.sessions[session.Token]
	if ok && current == session {
		delete(p.sessions, session.Token)
	}
	p.mu.Unlock()
	if !ok || current != session {
		return
	}

	session.Close()
	p.logger.Info().Str("user_id", session.UserID()).Msg("session expired")
	p.notify(session.UserID(), nil)
}

// Sessions reports the number of open sessions.
func (p *Provider) Sessions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// SignOut closes the session for token. Unknown tokens are ignored.
func (p *Provider) SignOut(_ context.Context, token string) {
	p.mu.Lock()
	session, ok := p.sessions[token]
	delete(p.sessions, token)
	p.mu.Unlock()
	if !ok || !session.Close() {
		return
	}

	p.logger.Info().Str("user_id", session.UserID()).Msg("signed out")
	p.notify(session.UserID(), nil)
}

// Session returns the open session for token. Expired sessions are rejected.
func (p *Provider) Session(token string) (*Session, error) {
	p.mu.RLock()
	session, ok := p.sessions[token]
	p.mu.RUnlock()
	if !ok || !session.Active() {
		return nil, apperr.ErrUserNotAuthenticated
	}
	return session, nil
}

// OnStateChange registers fn for sign-in and sign-out transitions.
func (p *Provider) OnStateChange(fn StateListener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Close signs out every open session.
func (p *Provider) Close() {
	p.mu.RLock()
	tokens := make([]string, 0, len(p.sessions))
	for token := range p.sessions {
		tokens = append(tokens, token)
	}
	p.mu.RUnlock()

	for _, token := range tokens {
		p.SignOut(context.Background(), token)
	}
}

func (p *Provider) notify(userID string, identity *Identity) {
	p.mu.RLock()
	fns := make([]StateListener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()

	for _, fn := range fns {
		fn(userID, identity)
	}
}
