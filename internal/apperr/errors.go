// Package apperr holds the error taxonomy shared by repositories, services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrAuthNotInitialized   = errors.New("auth not initialized")
	ErrUserNotAuthenticated = errors.New("user not authenticated")
	ErrCounterpartNotFound  = errors.New("counterpart not found")
	// ErrEmptyMessage marks a blank send. Callers treat it as a no-op.
	ErrEmptyMessage = errors.New("empty message")

	ErrSelfConversation = errors.New("cannot message yourself")
	ErrHeaderNotFound   = errors.New("chat header not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidUsername  = errors.New("username must be at least 6 characters")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrEmailTaken       = errors.New("email already registered to another user")
	ErrAlreadyFriends   = errors.New("friend already added")
	ErrSelfFriend       = errors.New("cannot add yourself as a friend")
	ErrMalformedRecord  = errors.New("malformed record")
)

// AuthFailedError reports a rejected sign-in.
type AuthFailedError struct {
	Reason string
	Err    error
}

func (e *AuthFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth failed: %s: %v", e.Reason, e.Err)
	}
	return "auth failed: " + e.Reason
}

func (e *AuthFailedError) Unwrap() error { return e.Err }

// HeaderWriteError reports a failed chat header write for one participant.
type HeaderWriteError struct {
	OwnerID string
	Err     error
}

func (e *HeaderWriteError) Error() string {
	return fmt.Sprintf("write chat header for %s: %v", e.OwnerID, e.Err)
}

func (e *HeaderWriteError) Unwrap() error { return e.Err }
