package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
	"dm-service/internal/store"
)

// UserRepository persists user records keyed by the auth provider's user id.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	SaveSignIn(ctx context.Context, userID, email, displayName string) (models.User, error)
	UpdateProfile(ctx context.Context, userID, username, chatDisplayName string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// UserRepo implements UserRepository on a document store.
type UserRepo struct {
	store  store.DocumentStore
	locks  *keyedMutex
	logger zerolog.Logger
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(s store.DocumentStore, logger zerolog.Logger) *UserRepo {
	return &UserRepo{store: s, locks: newKeyedMutex(), logger: logger}
}

func setUserID(u *models.User, key string) {
	if u.ID == "" {
		u.ID = key
	}
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	doc, err := r.store.Get(ctx, usersCollection, userID)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, apperr.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return decodeRecord[models.User](store.Record{Key: userID, Data: doc}, setUserID)
}

// SaveSignIn creates the user on first sign-in and refreshes email and
// display name afterwards. Profile fields are left alone. An email already
// held by another user is rejected with apperr.ErrEmailTaken.
func (r *UserRepo) SaveSignIn(ctx context.Context, userID, email, displayName string) (models.User, error) {
	if email != "" {
		unlock := r.locks.Lock("email:" + email)
		defer unlock()

		owner, err := r.FindByEmail(ctx, email)
		if err != nil {
			return models.User{}, err
		}
		if owner != nil && owner.ID != userID {
			r.logger.Warn().
				Str("user_id", userID).
				Str("owner_id", owner.ID).
				Msg("sign-in email belongs to another user")
			return models.User{}, apperr.ErrEmailTaken
		}
	}

	user, err := r.GetUser(ctx, userID)
	switch {
	case errors.Is(err, apperr.ErrUserNotFound):
		user = models.User{ID: userID, Email: email, DisplayName: displayName}
		doc, err := store.Encode(user)
		if err != nil {
			return models.User{}, err
		}
		if err := r.store.Set(ctx, usersCollection, userID, doc); err != nil {
			return models.User{}, fmt.Errorf("create user: %w", err)
		}
		return user, nil
	case err != nil:
		return models.User{}, err
	}

	if err := r.store.Update(ctx, usersCollection, userID, store.Document{
		"email":       email,
		"displayName": displayName,
	}); err != nil {
		return models.User{}, fmt.Errorf("refresh user: %w", err)
	}
	user.Email, user.DisplayName = email, displayName
	return user, nil
}

// UpdateProfile sets the username and chat display name. The username must
// not belong to another user.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID, username, chatDisplayName string) (models.User, error) {
	unlock := r.locks.Lock("username:" + username)
	defer unlock()

	owner, err := r.FindByUsername(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if owner != nil && owner.ID != userID {
		return models.User{}, apperr.ErrUsernameTaken
	}

	err = r.store.Update(ctx, usersCollection, userID, store.Document{
		"username":        username,
		"chatDisplayName": chatDisplayName,
	})
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, apperr.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("update profile: %w", err)
	}
	return r.GetUser(ctx, userID)
}

// FindByEmail returns the user with the given email, or nil.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByUsername returns the user with the given username, or nil.
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *UserRepo) findOne(ctx context.Context, field, value string) (*models.User, error) {
	records, err := r.store.Query(ctx, store.Where(usersCollection, field, value))
	if err != nil {
		return nil, fmt.Errorf("find user by %s: %w", field, err)
	}
	if len(records) > 1 {
		r.logger.Warn().Str("field", field).Int("count", len(records)).Msg("duplicate users")
	}
	for _, rec := range records {
		user, err := decodeRecord[models.User](rec, setUserID)
		if err != nil {
			r.logger.Warn().Err(err).Msg("skipping user")
			continue
		}
		return &user, nil
	}
	return nil, nil
}
