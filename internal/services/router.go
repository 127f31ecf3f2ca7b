package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
)

// Alignment is where a message is rendered for the viewing user.
type Alignment string

const (
	AlignLeft  Alignment = "left"
	AlignRight Alignment = "right"
)

// Router creates messages stamped with their conversation headers and
// projects message streams onto a single conversation.
type Router struct {
	messages repositories.MessageRepository
	now      func() time.Time
}

// NewRouter constructs a Router.
func NewRouter(messages repositories.MessageRepository) *Router {
	return &Router{messages: messages, now: time.Now}
}

// Send stores a message from senderID to recipientID carrying both header ids
// of pair. Blank text yields apperr.ErrEmptyMessage and stores nothing.
func (r *Router) Send(ctx context.Context, senderID, recipientID, text string, pair HeaderPair) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.ErrEmptyMessage
	}
	msg, err := r.messages.CreateMessage(ctx, models.Message{
		SenderID:          senderID,
		RecipientID:       recipientID,
		Text:              text,
		IsRead:            false,
		SentAt:            models.FormatTime(r.now()),
		SenderHeaderID:    pair.SenderHeaderID,
		RecipientHeaderID: pair.RecipientHeaderID,
	})
	if err != nil {
		return nil, fmt.Errorf("route message: %w", err)
	}
	return &msg, nil
}

// FilterForHeader returns the messages belonging to the conversation that
// headerID summarizes, in their original order. The input is not modified.
func FilterForHeader(messages []models.Message, headerID string) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.SenderHeaderID == headerID || msg.RecipientHeaderID == headerID {
			out = append(out, msg)
		}
	}
	return out
}

// AlignmentFor places the viewer's own messages on the right.
func AlignmentFor(msg models.Message, currentUserID string) Alignment {
	if msg.SenderID == currentUserID {
		return AlignRight
	}
	return AlignLeft
}
