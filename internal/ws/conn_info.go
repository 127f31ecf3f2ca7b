package ws

import (
	"time"

	"github.com/rs/zerolog"
)

// StreamKind names what a websocket stream carries.
type StreamKind string

const (
	StreamConversation StreamKind = "conversation"
	StreamChats        StreamKind = "chats"
	StreamFriends      StreamKind = "friends"
)

// ConnInfo describes one websocket stream. Room is the hub key the stream is
// registered under: a header id for conversations, kind:userID for lists.
type ConnInfo struct {
	ConnID      string
	Kind        StreamKind
	Room        string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) age() time.Duration {
	if i.ConnectedAt.IsZero() {
		return 0
	}
	return time.Since(i.ConnectedAt)
}

func (i ConnInfo) logger(base zerolog.Logger) zerolog.Logger {
	return base.With().
		Str("conn_id", i.ConnID).
		Str("kind", string(i.Kind)).
		Str("room", i.Room).
		Str("user_id", i.UserID).
		Logger()
}

func listRoom(kind StreamKind, userID string) string {
	return string(kind) + ":" + userID
}
