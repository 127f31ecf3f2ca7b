package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
)

func TestAddFriendByEmailOrUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	friends := NewFriendService(f.users, f.friends, zerolog.Nop())
	_, err := f.users.SaveSignIn(ctx, "u3", "carol@x.io", "Carol")
	require.NoError(t, err)
	_, err = f.users.UpdateProfile(ctx, "u3", "carol_c", "")
	require.NoError(t, err)

	bob, err := friends.AddFriend(ctx, f.alice, " bob@x.io ")
	require.NoError(t, err)
	assert.Equal(t, "u2", bob.FriendID)
	assert.Equal(t, "Bob", bob.FriendName)

	carol, err := friends.AddFriend(ctx, f.alice, "carol_c")
	require.NoError(t, err)
	assert.Equal(t, "u3", carol.FriendID)

	list, err := friends.ListFriends(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "u2", list[0].FriendID)
	assert.Equal(t, "u3", list[1].FriendID)

	bobs, err := friends.ListFriends(ctx, f.bob)
	require.NoError(t, err)
	assert.Empty(t, bobs, "adding a friend is one-way")
}

func TestAddFriendRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	friends := NewFriendService(f.users, f.friends, zerolog.Nop())

	_, err := friends.AddFriend(ctx, f.alice, "nobody@x.io")
	assert.ErrorIs(t, err, apperr.ErrCounterpartNotFound)
	_, err = friends.AddFriend(ctx, f.alice, "  ")
	assert.ErrorIs(t, err, apperr.ErrCounterpartNotFound)
	_, err = friends.AddFriend(ctx, f.alice, "alice@x.io")
	assert.ErrorIs(t, err, apperr.ErrSelfFriend)

	_, err = friends.AddFriend(ctx, f.alice, "bob@x.io")
	require.NoError(t, err)
	_, err = friends.AddFriend(ctx, f.alice, "bob@x.io")
	assert.ErrorIs(t, err, apperr.ErrAlreadyFriends)

	_, err = friends.AddFriend(ctx, nil, "bob@x.io")
	assert.ErrorIs(t, err, apperr.ErrUserNotAuthenticated)
}

func TestWatchFriends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	friends := NewFriendService(f.users, f.friends, zerolog.Nop())

	counts := make(chan int, 10)
	release, err := friends.WatchFriends(ctx, f.alice, func(list []models.Friend) {
		counts <- len(list)
	})
	require.NoError(t, err)
	defer release()

	_, err = friends.AddFriend(ctx, f.alice, "bob@x.io")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case n := <-counts:
			return n == 1
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
