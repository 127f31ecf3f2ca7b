package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dm-service/internal/auth"
	"dm-service/internal/models"
)

// ConversationWatcher streams the messages of one conversation.
type ConversationWatcher interface {
	WatchConversation(ctx context.Context, session *auth.Session, headerID string, fn func([]models.Message)) (func(), error)
}

// ChatWebSocketHandler streams conversation snapshots over websockets.
type ChatWebSocketHandler struct {
	chats  ConversationWatcher
	stream streamer
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler. checkOrigin may
// be nil to accept any origin.
func NewChatWebSocketHandler(hub *Hub, chats ConversationWatcher, sessions SessionLookup, checkOrigin func(*http.Request) bool, logger zerolog.Logger) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{
		chats:  chats,
		stream: newStreamer(hub, sessions, checkOrigin, logger),
	}
}

// Handle streams the conversation summarized by the header_id param. Every
// snapshot is written as a models.ChatEvent.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	headerID := c.Param("header_id")
	session, ok := h.stream.authenticate(c)
	if !ok {
		return
	}
	h.stream.serve(c, session, StreamConversation, headerID, func(ctx context.Context, session *auth.Session, emit func(any)) (func(), error) {
		return h.chats.WatchConversation(ctx, session, headerID, func(msgs []models.Message) {
			emit(models.ChatEvent{Type: "snapshot", HeaderID: headerID, Messages: msgs})
		})
	})
}
