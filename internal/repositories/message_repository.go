package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
	"dm-service/internal/store"
)

// MessageRepository defines interactions for direct messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	ListForUser(ctx context.Context, userID string) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID string) error
	WatchForUser(ctx context.Context, userID string, fn func([]models.Message)) (func(), error)
}

// MessageRepo is a document-store backed repository.
type MessageRepo struct {
	store  store.DocumentStore
	logger zerolog.Logger
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(s store.DocumentStore, logger zerolog.Logger) *MessageRepo {
	return &MessageRepo{store: s, logger: logger}
}

func setMessageID(m *models.Message, key string) {
	if m.ID == "" {
		m.ID = key
	}
}

// CreateMessage appends a message to the shared log.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	msg.ID = ""
	doc, err := store.Encode(msg)
	if err != nil {
		return models.Message{}, err
	}
	id, err := r.store.Push(ctx, chatsCollection, doc)
	if err != nil {
		return models.Message{}, fmt.Errorf("store message: %w", err)
	}
	msg.ID = id
	return msg, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	doc, err := r.store.Get(ctx, chatsCollection, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Message{}, apperr.ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return decodeRecord[models.Message](store.Record{Key: messageID, Data: doc}, setMessageID)
}

// ListForUser returns every message sent or received by userID in arrival order.
func (r *MessageRepo) ListForUser(ctx context.Context, userID string) ([]models.Message, error) {
	sent, err := r.store.Query(ctx, store.Where(chatsCollection, "senderId", userID))
	if err != nil {
		return nil, fmt.Errorf("list sent messages: %w", err)
	}
	received, err := r.store.Query(ctx, store.Where(chatsCollection, "recipientId", userID))
	if err != nil {
		return nil, fmt.Errorf("list received messages: %w", err)
	}
	return r.merge(sent, received), nil
}

// merge combines both directions ordered by push key, which is arrival order.
func (r *MessageRepo) merge(sent, received []store.Record) []models.Message {
	seen := make(map[string]struct{}, len(sent)+len(received))
	records := make([]store.Record, 0, len(sent)+len(received))
	for _, rec := range append(append([]store.Record{}, sent...), received...) {
		if _, dup := seen[rec.Key]; dup {
			continue
		}
		seen[rec.Key] = struct{}{}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Key < records[j].Key })

	msgs := make([]models.Message, 0, len(records))
	for _, rec := range records {
		msg, err := decodeRecord[models.Message](rec, setMessageID)
		if err != nil {
			r.logger.Warn().Err(err).Msg("skipping message")
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// MarkRead sets the read flag, the only mutable field of a message.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID string) error {
	err := r.store.Update(ctx, chatsCollection, messageID, store.Document{"isRead": true})
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrMessageNotFound
	}
	return err
}

// WatchForUser streams the messages sent or received by userID. The callback
// gets the merged view whenever either direction changes.
func (r *MessageRepo) WatchForUser(ctx context.Context, userID string, fn func([]models.Message)) (func(), error) {
	var (
		mu             sync.Mutex
		sent, received []store.Record
		haveS, haveR   bool
	)
	deliver := func() {
		if haveS && haveR {
			fn(r.merge(sent, received))
		}
	}

	releaseSent, err := r.store.Subscribe(ctx, store.Where(chatsCollection, "senderId", userID), func(records []store.Record) {
		mu.Lock()
		defer mu.Unlock()
		sent, haveS = records, true
		deliver()
	})
	if err != nil {
		return nil, err
	}
	releaseReceived, err := r.store.Subscribe(ctx, store.Where(chatsCollection, "recipientId", userID), func(records []store.Record) {
		mu.Lock()
		defer mu.Unlock()
		received, haveR = records, true
		deliver()
	})
	if err != nil {
		releaseSent()
		return nil, err
	}

	return func() {
		releaseSent()
		releaseReceived()
	}, nil
}
