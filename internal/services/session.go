package services

import (
	"context"

	"dm-service/internal/apperr"
	"dm-service/internal/auth"
)

func sessionUser(session *auth.Session) (string, error) {
	if session == nil || !session.Active() {
		return "", apperr.ErrUserNotAuthenticated
	}
	return session.UserID(), nil
}

// watchForSession runs watch under a context that also ends with session.
// The returned release stops the watch and detaches it from the session.
func watchForSession(ctx context.Context, session *auth.Session, watch func(ctx context.Context) (func(), error)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(session.Context(), cancel)
	release, err := watch(ctx)
	if err != nil {
		stop()
		cancel()
		return nil, err
	}
	return func() {
		release()
		stop()
		cancel()
	}, nil
}
