package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dm-service/internal/auth"
	"dm-service/internal/models"
)

type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) SendMessage(ctx context.Context, session *auth.Session, recipientID, text string) (*models.Message, error) {
	args := m.Called(ctx, session, recipientID, text)
	var msg *models.Message
	if val := args.Get(0); val != nil {
		msg = val.(*models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatServiceMock) ListChats(ctx context.Context, session *auth.Session) ([]models.ChatHeader, error) {
	args := m.Called(ctx, session)
	var list []models.ChatHeader
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatHeader)
	}
	return list, args.Error(1)
}

func (m *ChatServiceMock) OpenChat(ctx context.Context, session *auth.Session, counterpartID string) (*models.ChatHeader, error) {
	args := m.Called(ctx, session, counterpartID)
	var header *models.ChatHeader
	if val := args.Get(0); val != nil {
		header = val.(*models.ChatHeader)
	}
	return header, args.Error(1)
}

func (m *ChatServiceMock) ConversationMessages(ctx context.Context, session *auth.Session, headerID string) ([]models.Message, error) {
	args := m.Called(ctx, session, headerID)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *ChatServiceMock) MarkRead(ctx context.Context, session *auth.Session, messageID string) (models.Message, error) {
	args := m.Called(ctx, session, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type FriendServiceMock struct {
	mock.Mock
}

func (m *FriendServiceMock) AddFriend(ctx context.Context, session *auth.Session, query string) (models.Friend, error) {
	args := m.Called(ctx, session, query)
	var friend models.Friend
	if val := args.Get(0); val != nil {
		friend = val.(models.Friend)
	}
	return friend, args.Error(1)
}

func (m *FriendServiceMock) ListFriends(ctx context.Context, session *auth.Session) ([]models.Friend, error) {
	args := m.Called(ctx, session)
	var list []models.Friend
	if val := args.Get(0); val != nil {
		list = val.([]models.Friend)
	}
	return list, args.Error(1)
}

type UserServiceMock struct {
	mock.Mock
}

func (m *UserServiceMock) RecordSignIn(ctx context.Context, identity auth.Identity) (models.User, error) {
	args := m.Called(ctx, identity)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserServiceMock) CompleteProfile(ctx context.Context, session *auth.Session, username, chatDisplayName string) (models.User, error) {
	args := m.Called(ctx, session, username, chatDisplayName)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserServiceMock) Me(ctx context.Context, session *auth.Session) (models.User, error) {
	args := m.Called(ctx, session)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

// ProfileComplete mirrors the real rule so tests need not stub it.
func (m *UserServiceMock) ProfileComplete(user models.User) bool {
	return user.ProfileComplete()
}

type SessionProviderMock struct {
	mock.Mock
}

func (m *SessionProviderMock) SignIn(ctx context.Context, idToken string) (*auth.Session, error) {
	args := m.Called(ctx, idToken)
	var session *auth.Session
	if val := args.Get(0); val != nil {
		session = val.(*auth.Session)
	}
	return session, args.Error(1)
}

func (m *SessionProviderMock) SignOut(ctx context.Context, token string) {
	m.Called(ctx, token)
}
