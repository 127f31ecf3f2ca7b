package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dm-service/internal/auth"
	"dm-service/internal/models"
)

// ChatListWatcher streams a user's chat headers.
type ChatListWatcher interface {
	WatchChats(ctx context.Context, session *auth.Session, fn func([]models.ChatHeader)) (func(), error)
}

// FriendListWatcher streams a user's friend list.
type FriendListWatcher interface {
	WatchFriends(ctx context.Context, session *auth.Session, fn func([]models.Friend)) (func(), error)
}

// ListWebSocketHandler streams the caller's chat list and friend list.
type ListWebSocketHandler struct {
	chats   ChatListWatcher
	friends FriendListWatcher
	stream  streamer
}

// NewListWebSocketHandler constructs a ListWebSocketHandler. checkOrigin may
// be nil to accept any origin.
func NewListWebSocketHandler(hub *Hub, chats ChatListWatcher, friends FriendListWatcher, sessions SessionLookup, checkOrigin func(*http.Request) bool, logger zerolog.Logger) *ListWebSocketHandler {
	return &ListWebSocketHandler{
		chats:   chats,
		friends: friends,
		stream:  newStreamer(hub, sessions, checkOrigin, logger),
	}
}

// HandleChats streams models.ChatListEvent snapshots, newest chat first.
func (h *ListWebSocketHandler) HandleChats(c *gin.Context) {
	session, ok := h.stream.authenticate(c)
	if !ok {
		return
	}
	room := listRoom(StreamChats, session.UserID())
	h.stream.serve(c, session, StreamChats, room, func(ctx context.Context, session *auth.Session, emit func(any)) (func(), error) {
		return h.chats.WatchChats(ctx, session, func(headers []models.ChatHeader) {
			emit(models.ChatListEvent{Type: "snapshot", Chats: headers})
		})
	})
}

// HandleFriends streams models.FriendListEvent snapshots.
func (h *ListWebSocketHandler) HandleFriends(c *gin.Context) {
	session, ok := h.stream.authenticate(c)
	if !ok {
		return
	}
	room := listRoom(StreamFriends, session.UserID())
	h.stream.serve(c, session, StreamFriends, room, func(ctx context.Context, session *auth.Session, emit func(any)) (func(), error) {
		return h.friends.WatchFriends(ctx, session, func(friends []models.Friend) {
			emit(models.FriendListEvent{Type: "snapshot", Friends: friends})
		})
	})
}
