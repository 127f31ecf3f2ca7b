package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"dm-service/internal/apperr"
	"dm-service/internal/auth"
	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/repositories"
)

const minUsernameLength = 6

// UserService owns user records and profile completion.
type UserService struct {
	users  repositories.UserRepository
	logger zerolog.Logger
}

// NewUserService constructs a UserService.
func NewUserService(users repositories.UserRepository, logger zerolog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// RecordSignIn creates the user on first sign-in and refreshes the
// provider-owned fields afterwards.
func (s *UserService) RecordSignIn(ctx context.Context, identity auth.Identity) (models.User, error) {
	user, err := s.users.SaveSignIn(ctx, identity.UserID, identity.Email, identity.DisplayName)
	if err != nil {
		return models.User{}, err
	}
	if err := observability.PublishEvent(ctx, observability.EventUserSignedIn, "user_signed_in", user, observability.HeadersFromContext(ctx)); err != nil {
		s.logger.Warn().Err(err).Msg("publish sign-in event failed")
	}
	return user, nil
}

// CompleteProfile sets the session user's username and chat display name.
func (s *UserService) CompleteProfile(ctx context.Context, session *auth.Session, username, chatDisplayName string) (models.User, error) {
	userID, err := sessionUser(session)
	if err != nil {
		return models.User{}, err
	}
	username = strings.TrimSpace(username)
	if utf8.RuneCountInString(username) < minUsernameLength {
		return models.User{}, apperr.ErrInvalidUsername
	}
	user, err := s.users.UpdateProfile(ctx, userID, username, strings.TrimSpace(chatDisplayName))
	if err != nil {
		return models.User{}, err
	}
	s.logger.Info().Str("user_id", userID).Str("username", username).Msg("profile completed")
	return user, nil
}

// Me returns the session user's record.
func (s *UserService) Me(ctx context.Context, session *auth.Session) (models.User, error) {
	userID, err := sessionUser(session)
	if err != nil {
		return models.User{}, err
	}
	return s.users.GetUser(ctx, userID)
}

// ProfileComplete reports whether user has left the profile-incomplete state.
func (s *UserService) ProfileComplete(user models.User) bool {
	return user.ProfileComplete()
}
