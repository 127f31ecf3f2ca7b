package models

// Message is a direct message. It is immutable once created except for IsRead.
type Message struct {
	ID                string `json:"id" validate:"required"`
	SenderID          string `json:"senderId" validate:"required"`
	RecipientID       string `json:"recipientId" validate:"required"`
	Text              string `json:"message"`
	IsRead            bool   `json:"isRead"`
	SentAt            string `json:"sentAt"`
	SenderHeaderID    string `json:"senderHeaderId" validate:"required"`
	RecipientHeaderID string `json:"recipientHeaderId" validate:"required"`
}

// ChatEvent is pushed to websocket subscribers of a conversation.
type ChatEvent struct {
	Type     string    `json:"type"`
	HeaderID string    `json:"header_id"`
	Messages []Message `json:"messages"`
}
