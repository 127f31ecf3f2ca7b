package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"dm-service/internal/apperr"
	"dm-service/internal/auth"
	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/repositories"
)

// FriendService manages the session user's friend list.
type FriendService struct {
	users   repositories.UserRepository
	friends repositories.FriendRepository
	logger  zerolog.Logger
}

// NewFriendService constructs a FriendService.
func NewFriendService(users repositories.UserRepository, friends repositories.FriendRepository, logger zerolog.Logger) *FriendService {
	return &FriendService{users: users, friends: friends, logger: logger}
}

// AddFriend finds a user by email, then by username, and adds the session
// user's edge to them. The other user's list is not touched.
func (s *FriendService) AddFriend(ctx context.Context, session *auth.Session, query string) (models.Friend, error) {
	ownerID, err := sessionUser(session)
	if err != nil {
		return models.Friend{}, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Friend{}, apperr.ErrCounterpartNotFound
	}

	target, err := s.users.FindByEmail(ctx, query)
	if err != nil {
		return models.Friend{}, err
	}
	if target == nil {
		if target, err = s.users.FindByUsername(ctx, query); err != nil {
			return models.Friend{}, err
		}
	}
	if target == nil {
		return models.Friend{}, apperr.ErrCounterpartNotFound
	}
	if target.ID == ownerID {
		return models.Friend{}, apperr.ErrSelfFriend
	}

	edge, err := s.friends.AddFriend(ctx, ownerID, *target)
	if err != nil {
		return models.Friend{}, err
	}
	s.logger.Info().Str("user_id", ownerID).Str("friend_id", edge.FriendID).Msg("friend added")
	if err := observability.PublishEvent(ctx, observability.EventFriendAdded, "friend_added", edge, observability.HeadersFromContext(ctx)); err != nil {
		s.logger.Warn().Err(err).Msg("publish friend event failed")
	}
	return edge, nil
}

// ListFriends returns the session user's friends in the order they were added.
func (s *FriendService) ListFriends(ctx context.Context, session *auth.Session) ([]models.Friend, error) {
	ownerID, err := sessionUser(session)
	if err != nil {
		return nil, err
	}
	return s.friends.ListFriends(ctx, ownerID)
}

// WatchFriends streams the session user's friend list until released, ctx
// ends or the session is closed.
func (s *FriendService) WatchFriends(ctx context.Context, session *auth.Session, fn func([]models.Friend)) (func(), error) {
	ownerID, err := sessionUser(session)
	if err != nil {
		return nil, err
	}
	return watchForSession(ctx, session, func(ctx context.Context) (func(), error) {
		return s.friends.WatchFriends(ctx, ownerID, fn)
	})
}
