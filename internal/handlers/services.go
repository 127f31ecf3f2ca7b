package handlers

import (
	"context"

	"dm-service/internal/auth"
	"dm-service/internal/models"
)

// ChatService is the chat behaviour the HTTP layer needs.
type ChatService interface {
	SendMessage(ctx context.Context, session *auth.Session, recipientID, text string) (*models.Message, error)
	ListChats(ctx context.Context, session *auth.Session) ([]models.ChatHeader, error)
	OpenChat(ctx context.Context, session *auth.Session, counterpartID string) (*models.ChatHeader, error)
	ConversationMessages(ctx context.Context, session *auth.Session, headerID string) ([]models.Message, error)
	MarkRead(ctx context.Context, session *auth.Session, messageID string) (models.Message, error)
}

// FriendService is the friend-list behaviour the HTTP layer needs.
type FriendService interface {
	AddFriend(ctx context.Context, session *auth.Session, query string) (models.Friend, error)
	ListFriends(ctx context.Context, session *auth.Session) ([]models.Friend, error)
}

// UserService is the user behaviour the HTTP layer needs.
type UserService interface {
	RecordSignIn(ctx context.Context, identity auth.Identity) (models.User, error)
	CompleteProfile(ctx context.Context, session *auth.Session, username, chatDisplayName string) (models.User, error)
	Me(ctx context.Context, session *auth.Session) (models.User, error)
	ProfileComplete(user models.User) bool
}

// SessionProvider signs users in and out.
type SessionProvider interface {
	SignIn(ctx context.Context, idToken string) (*auth.Session, error)
	SignOut(ctx context.Context, token string)
}
