package models

import "time"

// ChatHeader is one participant's summary of a direct conversation. Each
// conversation has two headers, one owned by each participant, and each names
// the other party.
type ChatHeader struct {
	ID              string `json:"id" validate:"required"`
	OwnerID         string `json:"senderId" validate:"required"`
	CounterpartID   string `json:"recipientId" validate:"required"`
	CounterpartName string `json:"recipientName"`
	CombinedID      string `json:"combinedId" validate:"required"`
	LastMessageText string `json:"lastMessage"`
	LastMessageAt   string `json:"timestamp"`
}

// CombinedID is the directional lookup key of the header owned by owner for
// the conversation with counterpart. CombinedID(a, b) != CombinedID(b, a).
func CombinedID(owner, counterpart string) string {
	return owner + "_" + counterpart
}

// FormatTime renders timestamps the way they are stored in documents.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime is the inverse of FormatTime. Unparseable values yield the zero time.
func ParseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ChatListEvent is pushed to websocket subscribers of a user's chat list.
type ChatListEvent struct {
	Type  string       `json:"type"`
	Chats []ChatHeader `json:"chats"`
}
