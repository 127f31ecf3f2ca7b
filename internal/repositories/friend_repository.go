package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
	"dm-service/internal/store"
)

// FriendRepository persists one-way friend edges.
type FriendRepository interface {
	AddFriend(ctx context.Context, ownerID string, friend models.User) (models.Friend, error)
	FindFriend(ctx context.Context, ownerID, friendID string) (*models.Friend, error)
	ListFriends(ctx context.Context, ownerID string) ([]models.Friend, error)
	WatchFriends(ctx context.Context, ownerID string, fn func([]models.Friend)) (func(), error)
}

// FriendRepo implements FriendRepository on a document store.
type FriendRepo struct {
	store  store.DocumentStore
	locks  *keyedMutex
	now    func() time.Time
	logger zerolog.Logger
}

// NewFriendRepo constructs a FriendRepo.
func NewFriendRepo(s store.DocumentStore, logger zerolog.Logger) *FriendRepo {
	return &FriendRepo{store: s, locks: newKeyedMutex(), now: time.Now, logger: logger}
}

func setFriendID(f *models.Friend, key string) {
	if f.ID == "" {
		f.ID = key
	}
}

// AddFriend writes the owner's edge to friend. An owner holds at most one
// edge per friend.
func (r *FriendRepo) AddFriend(ctx context.Context, ownerID string, friend models.User) (models.Friend, error) {
	unlock := r.locks.Lock(ownerID)
	defer unlock()

	existing, err := r.FindFriend(ctx, ownerID, friend.ID)
	if err != nil {
		return models.Friend{}, err
	}
	if existing != nil {
		return models.Friend{}, apperr.ErrAlreadyFriends
	}

	edge := models.Friend{
		OwnerID:     ownerID,
		FriendID:    friend.ID,
		FriendName:  friend.Name(),
		FriendEmail: friend.Email,
		CreatedAt:   models.FormatTime(r.now()),
	}
	doc, err := store.Encode(edge)
	if err != nil {
		return models.Friend{}, err
	}
	id, err := r.store.Push(ctx, friendsCollection, doc)
	if err != nil {
		return models.Friend{}, fmt.Errorf("add friend: %w", err)
	}
	edge.ID = id
	return edge, nil
}

// FindFriend returns the owner's edge to friendID, or nil.
func (r *FriendRepo) FindFriend(ctx context.Context, ownerID, friendID string) (*models.Friend, error) {
	friends, err := r.ListFriends(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, f := range friends {
		if f.FriendID == friendID {
			return &f, nil
		}
	}
	return nil, nil
}

// ListFriends returns the owner's edges in the order they were added.
func (r *FriendRepo) ListFriends(ctx context.Context, ownerID string) ([]models.Friend, error) {
	records, err := r.store.Query(ctx, store.Where(friendsCollection, "userId", ownerID))
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return r.decodeAll(records), nil
}

func (r *FriendRepo) decodeAll(records []store.Record) []models.Friend {
	friends := make([]models.Friend, 0, len(records))
	for _, rec := range records {
		f, err := decodeRecord[models.Friend](rec, setFriendID)
		if err != nil {
			r.logger.Warn().Err(err).Msg("skipping friend")
			continue
		}
		friends = append(friends, f)
	}
	return friends
}

// WatchFriends streams the owner's friend list.
func (r *FriendRepo) WatchFriends(ctx context.Context, ownerID string, fn func([]models.Friend)) (func(), error) {
	return r.store.Subscribe(ctx, store.Where(friendsCollection, "userId", ownerID), func(records []store.Record) {
		fn(r.decodeAll(records))
	})
}
