package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"dm-service/internal/apperr"
	"dm-service/internal/auth"
	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/repositories"
)

// ChatService sends, lists and streams direct messages for a session.
type ChatService struct {
	users      repositories.UserRepository
	headers    repositories.HeaderRepository
	messages   repositories.MessageRepository
	reconciler *Reconciler
	router     *Router
	logger     zerolog.Logger
}

// NewChatService wires a ChatService over the given repositories.
func NewChatService(
	users repositories.UserRepository,
	headers repositories.HeaderRepository,
	messages repositories.MessageRepository,
	logger zerolog.Logger,
) *ChatService {
	return &ChatService{
		users:      users,
		headers:    headers,
		messages:   messages,
		reconciler: NewReconciler(headers, logger),
		router:     NewRouter(messages),
		logger:     logger,
	}
}

// SendMessage delivers text from the session user to recipientID. Blank text
// is a no-op and returns a nil message and nil error. On failure nothing of
// the send is left behind.
func (s *ChatService) SendMessage(ctx context.Context, session *auth.Session, recipientID, text string) (*models.Message, error) {
	senderID, err := sessionUser(session)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		s.logger.Debug().Str("sender_id", senderID).Msg("ignoring empty message")
		return nil, nil
	}
	if recipientID == senderID {
		return nil, apperr.ErrSelfConversation
	}

	ctx, span := tracer.Start(ctx, "ChatService.SendMessage")
	defer span.End()
	span.SetAttributes(attribute.String("sender_id", senderID), attribute.String("recipient_id", recipientID))

	senderName, err := s.displayName(ctx, session)
	if err != nil {
		observability.IncSendFailure("lookup")
		return nil, err
	}
	recipient, err := s.users.GetUser(ctx, recipientID)
	if errors.Is(err, apperr.ErrUserNotFound) {
		observability.IncSendFailure("lookup")
		return nil, apperr.ErrCounterpartNotFound
	}
	if err != nil {
		observability.IncSendFailure("lookup")
		return nil, fmt.Errorf("load recipient: %w", err)
	}

	// the writes outlive the caller so a dropped connection cannot leave a
	// half-finished send behind
	writeCtx := context.WithoutCancel(ctx)

	pair, err := s.reconciler.OnMessageSend(writeCtx, senderID, recipientID, recipient.Name(), senderName, text)
	if err != nil {
		observability.IncSendFailure("headers")
		span.SetStatus(codes.Error, "headers")
		return nil, err
	}

	msg, err := s.router.Send(writeCtx, senderID, recipientID, text, pair)
	if err != nil {
		s.reconciler.Revert(writeCtx, pair)
		observability.IncSendFailure("message")
		span.RecordError(err)
		span.SetStatus(codes.Error, "message")
		s.logger.Error().Err(err).Str("sender_id", senderID).Str("recipient_id", recipientID).Msg("message send failed")
		return nil, err
	}

	observability.IncMessageSent()
	s.logger.Info().
		Str("message_id", msg.ID).
		Str("sender_id", senderID).
		Str("recipient_id", recipientID).
		Msg("message sent")
	if err := observability.PublishEvent(writeCtx, observability.EventMessageSent, "message_sent", msg, observability.HeadersFromContext(ctx)); err != nil {
		s.logger.Warn().Err(err).Msg("publish message event failed")
	}
	return msg, nil
}

// displayName is the name the recipient sees for the session user.
func (s *ChatService) displayName(ctx context.Context, session *auth.Session) (string, error) {
	user, err := s.users.GetUser(ctx, session.UserID())
	switch {
	case errors.Is(err, apperr.ErrUserNotFound):
		return models.User{Email: session.Identity.Email, DisplayName: session.Identity.DisplayName}.Name(), nil
	case err != nil:
		return "", fmt.Errorf("load sender: %w", err)
	}
	return user.Name(), nil
}

// ListChats returns the session user's conversations, most recent first.
func (s *ChatService) ListChats(ctx context.Context, session *auth.Session) ([]models.ChatHeader, error) {
	userID, err := sessionUser(session)
	if err != nil {
		return nil, err
	}
	return s.headers.ListHeaders(ctx, userID)
}

// ownedHeader loads headerID and checks it belongs to userID. Headers of other
// users are reported as missing.
func (s *ChatService) ownedHeader(ctx context.Context, userID, headerID string) (models.ChatHeader, error) {
	header, err := s.headers.GetHeader(ctx, headerID)
	if err != nil {
		return models.ChatHeader{}, err
	}
	if header.OwnerID != userID {
		return models.ChatHeader{}, apperr.ErrHeaderNotFound
	}
	return header, nil
}

// ConversationMessages returns the messages of the conversation summarized by
// headerID in arrival order.
func (s *ChatService) ConversationMessages(ctx context.Context, session *auth.Session, headerID string) ([]models.Message, error) {
	userID, err := sessionUser(session)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedHeader(ctx, userID, headerID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FilterForHeader(msgs, headerID), nil
}

// MarkRead flags a received message as read. Only its recipient may do so.
func (s *ChatService) MarkRead(ctx context.Context, session *auth.Session, messageID string) (models.Message, error) {
	userID, err := sessionUser(session)
	if err != nil {
		return models.Message{}, err
	}
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.RecipientID != userID {
		return models.Message{}, apperr.ErrForbidden
	}
	if msg.IsRead {
		return msg, nil
	}
	if err := s.messages.MarkRead(ctx, messageID); err != nil {
		return models.Message{}, err
	}
	msg.IsRead = true

	if err := observability.PublishEvent(ctx, observability.EventMessageRead, "message_read", msg, observability.HeadersFromContext(ctx)); err != nil {
		s.logger.Warn().Err(err).Msg("publish read event failed")
	}
	return msg, nil
}

// WatchConversation calls fn with the conversation's messages now and after
// every change, until the returned func is called, ctx ends or the session
// is closed.
func (s *ChatService) WatchConversation(ctx context.Context, session *auth.Session, headerID string, fn func([]models.Message)) (func(), error) {
	userID, err := sessionUser(session)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedHeader(ctx, userID, headerID); err != nil {
		return nil, err
	}

	return watchForSession(ctx, session, func(ctx context.Context) (func(), error) {
		return s.messages.WatchForUser(ctx, userID, func(msgs []models.Message) {
			fn(FilterForHeader(msgs, headerID))
		})
	})
}

// WatchChats streams the session user's chat headers, most recent first,
// until released, ctx ends or the session is closed.
func (s *ChatService) WatchChats(ctx context.Context, session *auth.Session, fn func([]models.ChatHeader)) (func(), error) {
	userID, err := sessionUser(session)
	if err != nil {
		return nil, err
	}
	return watchForSession(ctx, session, func(ctx context.Context) (func(), error) {
		return s.headers.WatchHeaders(ctx, userID, fn)
	})
}

// OpenChat returns the session user's header for the conversation with
// counterpartID, or nil when they have not exchanged a message yet.
func (s *ChatService) OpenChat(ctx context.Context, session *auth.Session, counterpartID string) (*models.ChatHeader, error) {
	userID, err := sessionUser(session)
	if err != nil {
		return nil, err
	}
	if counterpartID == userID {
		return nil, apperr.ErrSelfConversation
	}
	if _, err := s.users.GetUser(ctx, counterpartID); err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return nil, apperr.ErrCounterpartNotFound
		}
		return nil, fmt.Errorf("load counterpart: %w", err)
	}
	own, theirs, err := s.headers.FindPair(ctx, userID, counterpartID)
	if err != nil {
		return nil, err
	}
	if own == nil && theirs != nil {
		s.logger.Warn().
			Str("user_id", userID).
			Str("counterpart_id", counterpartID).
			Str("header_id", theirs.ID).
			Msg("conversation is missing the caller's header")
	}
	return own, nil
}
