package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/apperr"
	"dm-service/internal/auth"
	"dm-service/internal/auth/authtest"
)

func TestRecordSignInAndCompleteProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := NewUserService(f.users, zerolog.Nop())

	dave := auth.Identity{UserID: "u4", Email: "dave@x.io", DisplayName: "Dave"}
	user, err := users.RecordSignIn(ctx, dave)
	require.NoError(t, err)
	assert.False(t, users.ProfileComplete(user))

	session := authtest.NewSession(dave)
	_, err = users.CompleteProfile(ctx, session, " short ", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidUsername)

	user, err = users.CompleteProfile(ctx, session, "  dave_d  ", " D ")
	require.NoError(t, err)
	assert.Equal(t, "dave_d", user.Username)
	assert.Equal(t, "D", user.ChatDisplayName)
	assert.True(t, users.ProfileComplete(user))

	me, err := users.Me(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, user, me)

	_, err = users.CompleteProfile(ctx, f.alice, "dave_d", "")
	assert.ErrorIs(t, err, apperr.ErrUsernameTaken)
}

func TestUsernameLengthCountsCharacters(t *testing.T) {
	f := newFixture(t)
	users := NewUserService(f.users, zerolog.Nop())

	_, err := users.CompleteProfile(context.Background(), f.alice, "ééééé", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidUsername)
	_, err = users.CompleteProfile(context.Background(), f.alice, "éééééé", "")
	assert.NoError(t, err)
}

func TestMeRequiresSession(t *testing.T) {
	f := newFixture(t)
	users := NewUserService(f.users, zerolog.Nop())
	_, err := users.Me(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrUserNotAuthenticated)
}
